package mid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/blockfeed/business/web/errs"
	"github.com/ardanlabs/blockfeed/business/web/mid"
	"github.com/ardanlabs/blockfeed/foundation/logger"
	"github.com/ardanlabs/blockfeed/foundation/validate"
	"github.com/ardanlabs/blockfeed/foundation/web"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_Errors(t *testing.T) {
	log := logger.NewNop()

	app := web.NewApp(
		make(chan os.Signal, 1),
		mid.Logger(log),
		mid.Errors(log),
		mid.Metrics(),
		mid.Cors("*"),
		mid.Panics(),
	)

	app.Handle(http.MethodGet, "v1", "/trusted", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errs.NewTrusted(errors.New("not here"), http.StatusNotFound)
	})
	app.Handle(http.MethodGet, "v1", "/fields", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return validate.FieldErrors{{Field: "chain", Error: "chain is not a recognized chain"}}
	})
	app.Handle(http.MethodGet, "v1", "/internal", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errors.New("database password is hunter2")
	})
	app.Handle(http.MethodGet, "v1", "/panic", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	})

	tests := []struct {
		path   string
		status int
		msg    string
		field  string
	}{
		{"/v1/trusted", http.StatusNotFound, "not here", ""},
		{"/v1/fields", http.StatusBadRequest, "data validation error", "chain"},
		{"/v1/internal", http.StatusInternalServerError, "Internal Server Error", ""},
		{"/v1/panic", http.StatusInternalServerError, "Internal Server Error", ""},
	}

	t.Log("Given the need to map handler errors to responses.")
	{
		for testID, tt := range tests {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen calling %s.", testID, tt.path)
				{
					r := httptest.NewRequest(http.MethodGet, tt.path, nil)
					w := httptest.NewRecorder()
					app.ServeHTTP(w, r)

					if w.Code != tt.status {
						t.Fatalf("\t%s\tTest %d:\tShould get status %d: got %d", failed, testID, tt.status, w.Code)
					}
					t.Logf("\t%s\tTest %d:\tShould get status %d.", success, testID, tt.status)

					var resp errs.Response
					if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to decode the response: %s", failed, testID, err)
					}

					if resp.Error != tt.msg {
						t.Fatalf("\t%s\tTest %d:\tShould get message %q: got %q", failed, testID, tt.msg, resp.Error)
					}
					t.Logf("\t%s\tTest %d:\tShould get message %q.", success, testID, tt.msg)

					if tt.field != "" {
						if _, exists := resp.Fields[tt.field]; !exists {
							t.Fatalf("\t%s\tTest %d:\tShould report field %q: got %v", failed, testID, tt.field, resp.Fields)
						}
						t.Logf("\t%s\tTest %d:\tShould report field %q.", success, testID, tt.field)
					}

					if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
						t.Fatalf("\t%s\tTest %d:\tShould set the CORS origin: got %q", failed, testID, got)
					}
					t.Logf("\t%s\tTest %d:\tShould set the CORS origin.", success, testID)
				}
			}

			t.Run(tt.path, f)
		}
	}
}
