package testsupport

import (
	"context"
	"testing"
	"time"

	"retrovue/internal/broadcast"
	"retrovue/internal/config"
	"retrovue/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustCreateChannel inserts a UTC channel with a 30-minute grid and 06:00
// rollover under the given name.
func MustCreateChannel(t testing.TB, st *store.Store, name string) *broadcast.Channel {
	t.Helper()

	ch := &broadcast.Channel{
		Name:              name,
		Timezone:          "UTC",
		GridSizeMinutes:   30,
		GridOffsetMinutes: 0,
		RolloverMinutes:   360,
		IsActive:          true,
	}
	if err := st.CreateChannel(context.Background(), ch); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	return ch
}

// MustAddAsset inserts a canonical asset with the given title, duration,
// and tags.
func MustAddAsset(t testing.TB, st *store.Store, title string, duration time.Duration, tags ...string) *broadcast.CatalogAsset {
	t.Helper()

	asset := &broadcast.CatalogAsset{
		Title:      title,
		DurationMS: duration.Milliseconds(),
		Tags:       tags,
		FileRef:    "library/" + title + ".mkv",
		Canonical:  true,
	}
	if err := st.AddAsset(context.Background(), asset); err != nil {
		t.Fatalf("AddAsset(%s): %v", title, err)
	}
	return asset
}

// MustCreateTemplate inserts an active template with the given blocks.
func MustCreateTemplate(t testing.TB, st *store.Store, name string, blocks ...broadcast.TemplateBlock) *broadcast.Template {
	t.Helper()

	tpl := &broadcast.Template{Name: name, IsActive: true}
	if err := st.CreateTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("CreateTemplate(%s): %v", name, err)
	}
	for i := range blocks {
		block := blocks[i]
		block.TemplateID = tpl.ID
		if err := st.AddBlock(context.Background(), &block); err != nil {
			t.Fatalf("AddBlock: %v", err)
		}
	}
	return tpl
}
