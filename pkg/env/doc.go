// pkg/env/doc.go
package env

/*
Package env provides environment management for envboot.

It handles:
  - Creating isolated environment roots (idempotently by default)
  - Activating an environment for the current process context
  - Restoring the previous process state on deactivation
  - Rendering activation scripts for shell sessions

Basic Usage:

    import "github.com/arc-language/envboot/pkg/env"

    m := env.NewManager(nil, nil)

    e, err := m.Create(ctx, ".venv", env.CreateOptions{})
    if err != nil {
        return err
    }

    act, err := m.Activate(e)
    if err != nil {
        return err
    }
    defer act.Release()

    script, _ := act.Script("bash")
    fmt.Print(script) // export VIRTUAL_ENV=/work/.venv ...

State machine:

An environment moves Uninitialized -> Created -> Activated -> Deactivated,
and may be activated again afterwards. The time of the last activation is
recorded in envboot.json, so a later process reports Deactivated for an
environment that was activated and is no longer active. Activating while any environment is
active (including the same one) fails with core.ErrEnvironmentAlreadyActive.
Deactivation is idempotent.

The "process context" is the Environ the Manager was built with. A shell
that evaluated an activation script passes VIRTUAL_ENV down to child
processes; Current adopts that activation so a later invocation can
deactivate it or install into it.

Concurrent invocations against the same root are not coordinated.
*/
