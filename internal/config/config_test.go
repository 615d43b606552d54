package config_test

import (
	"os"
	"testing"

	"tableside/internal/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg, err := config.FromYAML([]byte(config.GenerateDefault("bistro")))
	if err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Restaurant.ID != "bistro" || cfg.Ledger.Retention != 200 || cfg.Persistence.Backend != "sqlite" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if d := config.Default("bistro"); d.Restaurant.Currency != "EUR" {
		t.Fatalf("currency = %q", d.Restaurant.Currency)
	}
}

func TestAllows(t *testing.T) {
	cfg := config.Default("bistro")
	tests := []struct {
		roles []string
		perm  string
		want  bool
	}{
		{[]string{"manager"}, config.PermOrdersClear, true},
		{[]string{"cook"}, config.PermOrdersStatus, true},
		{[]string{"cook"}, config.PermOrdersWrite, false},
		{[]string{"guest"}, config.PermOrdersRead, false},
		{[]string{"cook", "waiter"}, config.PermOrdersWrite, true},
	}
	for _, tc := range tests {
		if got := cfg.Allows(tc.roles, tc.perm); got != tc.want {
			t.Fatalf("Allows(%v, %s) = %v, want %v", tc.roles, tc.perm, got, tc.want)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"no restaurant":      "ledger: {retention: 10}\n",
		"bad backend":        "restaurant: {id: x}\npersistence: {backend: redis}\n",
		"postgres no dsn":    "restaurant: {id: x}\npersistence: {backend: postgres}\n",
		"kafka no topic":     "restaurant: {id: x}\nkafka: {brokers: [b:9092]}\n",
		"webhook no url":     "restaurant: {id: x}\nwebhooks: [{id: h}]\n",
		"negative retention": "restaurant: {id: x}\nledger: {retention: -1}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := config.FromYAML([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("expected nil config, got %v, %v", cfg, err)
	}
	if err := os.WriteFile(config.Path(dir), []byte(config.GenerateDefault("cafe")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = config.Load(dir)
	if err != nil || cfg.Restaurant.ID != "cafe" {
		t.Fatalf("load = %+v, %v", cfg, err)
	}
}
