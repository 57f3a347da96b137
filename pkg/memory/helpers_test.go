package memory

import (
	"strings"

	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/tokens"
)

func estimateCounter() *tokens.Counter {
	return tokens.NewCounter(nil, tokens.WithLogger(logging.NewDisabledLogger()))
}

func quietRegistry() *Registry {
	return NewRegistry(logging.NewDisabledLogger())
}

func filler(char string, n int) string {
	return strings.Repeat(char, n)
}

func turn(role Role, content string) Turn {
	return Turn{Role: role, Content: content}
}
