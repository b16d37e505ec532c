package llm

import (
	"context"
	"errors"
	"testing"
)

func TestConfig_Check(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "disabled", cfg: Config{APIKey: "k", Model: "m"}, wantErr: ErrDisabled},
		{name: "missing key", cfg: Config{Enabled: true, Model: "m"}, wantErr: ErrNotConfigured},
		{name: "missing model", cfg: Config{Enabled: true, APIKey: "k"}, wantErr: ErrNotConfigured},
		{name: "ready", cfg: Config{Enabled: true, APIKey: "k", Model: "m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Check()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGemini_GenerateFailsBeforeNetwork(t *testing.T) {
	g := NewGemini(Config{Enabled: false})
	if _, err := g.Generate(context.Background(), Request{Prompt: "hi"}); !errors.Is(err, ErrDisabled) {
		t.Errorf("Generate error = %v, want ErrDisabled", err)
	}
	if g.client != nil {
		t.Error("client was created for a disabled model")
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "clean", raw: `{"operations": []}`, want: `{"operations": []}`},
		{name: "fenced", raw: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "prose around", raw: "Sure! Here you go: {\"a\": {\"b\": 2}} Hope it helps.", want: `{"a": {"b": 2}}`},
		{name: "no object", raw: "I cannot help with that.", wantErr: true},
		{name: "reversed braces", raw: "} oops {", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.raw)
			if tt.wantErr {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("error = %v, want *ParseError", err)
				}
				if pe.Raw != tt.raw {
					t.Errorf("ParseError.Raw = %q, want %q", pe.Raw, tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSONObject = %q, want %q", got, tt.want)
			}
		})
	}
}
