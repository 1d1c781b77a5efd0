package responseformat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Decade int     `json:"decade" msgpack:"decade"`
	Mean   float64 `json:"mean" msgpack:"mean"`
}

func TestWantsMsgPack(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		accept string
		want   bool
	}{
		{"default", "/runs", "", false},
		{"query", "/runs?format=msgpack", "", true},
		{"query json wins over accept", "/runs?format=json", ContentTypeMsgPack, false},
		{"accept header", "/runs", ContentTypeMsgPack, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if got := WantsMsgPack(req); got != tt.want {
				t.Errorf("WantsMsgPack = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteResponse(t *testing.T) {
	f := NewFormatter()
	in := payload{Decade: 2030, Mean: 42.5}

	rec := httptest.NewRecorder()
	if err := f.WriteResponse(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, in); err != nil {
		t.Fatal(err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != ContentTypeJSON {
		t.Errorf("content type = %s", ct)
	}
	var gotJSON payload
	if err := json.Unmarshal(rec.Body.Bytes(), &gotJSON); err != nil || gotJSON != in {
		t.Errorf("json body = %+v, %v", gotJSON, err)
	}

	rec = httptest.NewRecorder()
	if err := f.WriteResponse(rec, httptest.NewRequest(http.MethodGet, "/?format=msgpack", nil), http.StatusOK, in); err != nil {
		t.Fatal(err)
	}
	var gotMP payload
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &gotMP); err != nil || gotMP != in {
		t.Errorf("msgpack body = %+v, %v", gotMP, err)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	NewFormatter().WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusNotFound, "run not found")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error != "run not found" {
		t.Errorf("body = %+v, %v", body, err)
	}
}
