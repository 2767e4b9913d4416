package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vkarpekin/mebelbot/internal/domain"
)

func TestDecodeParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    domain.LLMParse
		wantErr bool
	}{
		{
			name:    "plain json",
			content: `{"type":"deal","client_name":"Иванов","product_name":"кухня","quantity":2}`,
			want:    domain.LLMParse{Type: "deal", ClientName: "Иванов", ProductName: "кухня", Quantity: 2},
		},
		{
			name:    "fenced json with prose",
			content: "Вот результат:\n```json\n{\"type\":\"search_client\",\"client_name\":\"Петров\"}\n```",
			want:    domain.LLMParse{Type: "search_client", ClientName: "Петров"},
		},
		{
			name:    "unexpected type degrades to unknown",
			content: `{"type":"weather_report"}`,
			want:    domain.LLMParse{Type: domain.LLMParseUnknown},
		},
		{
			name:    "no json at all",
			content: "не могу разобрать",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeParse(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFailsSoft(t *testing.T) {
	t.Run("no api key", func(t *testing.T) {
		s := NewOpenRouterService("", "some/model")
		got := s.Parse(context.Background(), "создай что-нибудь")
		if got.Type != domain.LLMParseUnknown {
			t.Errorf("Type = %q, want unknown", got.Type)
		}
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		s := NewOpenRouterService("key", "some/model")
		s.baseURL = srv.URL
		got := s.Parse(context.Background(), "кухня для иванова")
		if got.Type != domain.LLMParseUnknown {
			t.Errorf("Type = %q, want unknown", got.Type)
		}
	})
}

func TestParseRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("Authorization = %q", got)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "test/model" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"content": `{"type":"deal","client_name":"Сидоров","product_name":"шкаф","quantity":1}`,
				}},
			},
		})
	}))
	defer srv.Close()

	s := NewOpenRouterService("key", "test/model")
	s.baseURL = srv.URL

	got := s.Parse(context.Background(), "нужен шкаф сидорову")
	if got.Type != domain.LLMParseDeal || got.ClientName != "Сидоров" || got.Quantity != 1 {
		t.Errorf("parse = %+v", got)
	}
}
