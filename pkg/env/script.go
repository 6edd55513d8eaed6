// pkg/env/script.go
package env

import (
	"fmt"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// DefaultShell is used when no shell is named
const DefaultShell = "bash"

func shellVariant(shell string) (syntax.LangVariant, error) {
	switch shell {
	case "", "bash", "zsh":
		return syntax.LangBash, nil
	case "sh", "dash", "ash", "posix":
		return syntax.LangPOSIX, nil
	default:
		return 0, fmt.Errorf("unsupported shell %q (supported: bash, zsh, sh)", shell)
	}
}

// SupportedShell reports whether scripts can be rendered for shell
func SupportedShell(shell string) bool {
	_, err := shellVariant(shell)
	return err == nil
}

// Script renders the activation as shell code suitable for eval
func (a *Activation) Script(shell string) (string, error) {
	return renderScript(shell, a.applied)
}

// RestoreScript renders shell code that undoes the activation
func (a *Activation) RestoreScript(shell string) (string, error) {
	keys := make([]string, 0, len(a.previous))
	for key := range a.previous {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	changes := make([]change, 0, len(keys))
	for _, key := range keys {
		changes = append(changes, change{key: key, value: a.previous[key]})
	}
	return renderScript(shell, changes)
}

func renderScript(shell string, changes []change) (string, error) {
	lang, err := shellVariant(shell)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, c := range changes {
		if c.value == nil {
			fmt.Fprintf(&b, "unset %s\n", c.key)
			continue
		}
		quoted, err := syntax.Quote(*c.value, lang)
		if err != nil {
			return "", fmt.Errorf("quoting %s: %w", c.key, err)
		}
		fmt.Fprintf(&b, "export %s=%s\n", c.key, quoted)
	}
	// PATH changed; drop the shell's cached command locations
	b.WriteString("hash -r 2>/dev/null || true\n")
	return b.String(), nil
}
