package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellobirdie/hellobirdie/internal/conf"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := RootCommand(&conf.Settings{})

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "birds", "taxonomy", "backup", "admin", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestSkipsSetup(t *testing.T) {
	root := RootCommand(&conf.Settings{})

	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"version"}, true},
		{[]string{"admin", "hash-password"}, true},
		{[]string{"birds", "list"}, false},
		{[]string{"serve"}, false},
	}
	for _, tt := range tests {
		cmd, _, err := root.Find(tt.args)
		require.NoError(t, err, "%v", tt.args)
		assert.Equal(t, tt.want, skipsSetup(cmd), "%v", tt.args)
	}
}
