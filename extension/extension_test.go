package extension

import (
	"testing"

	"github.com/xraph/presale/store/kv"
	"github.com/xraph/presale/store/memory"
)

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		check   func(t *testing.T, s any)
	}{
		{
			name: "default is memory",
			cfg:  Config{},
			check: func(t *testing.T, s any) {
				if _, ok := s.(*memory.Store); !ok {
					t.Fatalf("got %T, want *memory.Store", s)
				}
			},
		},
		{
			name: "kv syncmap",
			cfg:  Config{Backend: BackendKV, KVKind: kv.KindSyncMap},
			check: func(t *testing.T, s any) {
				if _, ok := s.(*kv.Store); !ok {
					t.Fatalf("got %T, want *kv.Store", s)
				}
			},
		},
		{name: "grove without database", cfg: Config{Backend: BackendGrove, GroveDriver: "postgres"}, wantErr: true},
		{name: "unknown backend", cfg: Config{Backend: "redis"}, wantErr: true},
		{name: "unknown kv kind", cfg: Config{Backend: BackendKV, KVKind: "etcd"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := openStore(tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("openStore(%+v) succeeded", tt.cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("openStore: %v", err)
			}
			tt.check(t, s)
		})
	}
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{Backend: BackendKV, KVDirectory: "/var/lib/presale"}
	prog := Config{KVKind: kv.KindBadgerDB, KVDirectory: "ignored", ConfigFile: "presale.yaml", OpenSaleOnStart: true}

	got := mergeConfigurations(yaml, prog)

	if got.Backend != BackendKV || got.KVDirectory != "/var/lib/presale" {
		t.Fatalf("yaml values lost: %+v", got)
	}
	if got.KVKind != kv.KindBadgerDB || got.ConfigFile != "presale.yaml" || !got.OpenSaleOnStart {
		t.Fatalf("programmatic gaps not filled: %+v", got)
	}
}

func TestMergeWithDefaults(t *testing.T) {
	got := mergeWithDefaults(Config{})
	if got != DefaultConfig() {
		t.Fatalf("mergeWithDefaults(zero) = %+v, want %+v", got, DefaultConfig())
	}
}

func TestOptions(t *testing.T) {
	e := New(WithKV(kv.KindFile, "data"), WithOpenSaleOnStart(), WithConfigFile("sale.yaml"))
	if e.config.Backend != BackendKV || e.config.KVKind != kv.KindFile || e.config.KVDirectory != "data" {
		t.Fatalf("WithKV: %+v", e.config)
	}
	if !e.config.OpenSaleOnStart || e.config.ConfigFile != "sale.yaml" {
		t.Fatalf("options not applied: %+v", e.config)
	}
	if e.Engine() != nil {
		t.Fatal("engine built before Register")
	}
}
