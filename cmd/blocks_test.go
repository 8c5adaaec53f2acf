package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quire-dev/quire/internal/domain"
	m "github.com/quire-dev/quire/internal/model"
)

func TestBlocksCmd_DefaultsToCurrentDir(t *testing.T) {
	mockWorkflow := &MockWorkflow{}

	cmd := newRootCmd()
	cmd.AddCommand(newBlocksCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	mockWorkflow.On("Blocks", mock.Anything, mock.MatchedBy(func(args domain.BlocksArgs) bool {
		return len(args.Roots) == 1 && args.Roots[0] == m.Path(".") && len(args.Excludes) == 0
	})).Return(nil)

	cmd.SetArgs([]string{"blocks"})
	require.NoError(t, cmd.Execute())

	mockWorkflow.AssertExpectations(t)
}

func TestBlocksCmd_PathsAndExcludes(t *testing.T) {
	mockWorkflow := &MockWorkflow{}

	cmd := newRootCmd()
	cmd.AddCommand(newBlocksCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	mockWorkflow.On("Blocks", mock.Anything, mock.MatchedBy(func(args domain.BlocksArgs) bool {
		return len(args.Roots) == 2 &&
			args.Roots[0] == m.Path("pages/...") &&
			args.Roots[1] == m.Path("extra.qd") &&
			len(args.Excludes) == 2 &&
			args.Excludes[0] == "^drafts/" &&
			args.Excludes[1] == `\.bak`
	})).Return(nil)

	cmd.SetArgs([]string{"blocks", "-x", "^drafts/", "-x", `\.bak`, "pages/...", "extra.qd"})
	require.NoError(t, cmd.Execute())

	mockWorkflow.AssertExpectations(t)
}
