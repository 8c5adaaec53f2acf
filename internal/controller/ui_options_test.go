package controller

import "testing"

func TestStartOptions(t *testing.T) {
	cfg := &StartConfig{}
	WithEditMode(&fakeEditSession{page: "notes"})(cfg)
	if cfg.mode != ModeEdit {
		t.Fatalf("WithEditMode() mode = %v, want %v", cfg.mode, ModeEdit)
	}
	if cfg.sess == nil {
		t.Fatalf("WithEditMode() left session unset")
	}

	WithBlocksMode()(cfg)
	if cfg.mode != ModeBlocks {
		t.Fatalf("WithBlocksMode() mode = %v, want %v", cfg.mode, ModeBlocks)
	}
}
