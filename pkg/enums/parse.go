package enums

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

func parse[T ~string](what string, valid []T, raw string) (T, error) {
	v := T(strings.TrimSpace(raw))
	if !lo.Contains(valid, v) {
		return "", fmt.Errorf("invalid %s %q", what, raw)
	}
	return v, nil
}
