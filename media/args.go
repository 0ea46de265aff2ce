package media

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// SplitExtraArgs splits operator-supplied extra encoder arguments.
// No shell is involved, so quoting is handled by shlex alone.
func SplitExtraArgs(extra string) ([]string, error) {
	if strings.TrimSpace(extra) == "" {
		return nil, nil
	}
	args, err := shlex.Split(extra)
	if err != nil {
		return nil, fmt.Errorf("invalid extra args syntax: %w", err)
	}
	if err := ValidateArgs(args); err != nil {
		return nil, err
	}
	return args, nil
}

// ValidateArgs rejects shell-like metacharacters in operator-supplied
// arguments.
func ValidateArgs(args []string) error {
	for _, arg := range args {
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return fmt.Errorf("disallowed character found in argument: %s", arg)
		}
	}
	return nil
}
