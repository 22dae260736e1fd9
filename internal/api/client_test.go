package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/scriptdeck/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL+"/api/", opts...)
	require.NoError(t, err)
	return client
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New("")
	require.Error(t, err)

	_, err = New("ftp://example.com/api")
	require.Error(t, err)
}

func TestListScriptsSendsHeaders(t *testing.T) {
	var seen http.Header
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/scripts", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		seen = r.Header.Clone()
		_, _ = io.WriteString(w, `[{"id":2,"name":"b","path":"b.py","cron":null,"enabled":true,"last_status":"running","last_run":"2024-01-02T03:04:05"}]`)
	}), WithToken("secret"))

	ctx := WithRequestID(context.Background(), "batch-123")
	scripts, err := client.ListScripts(ctx)
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	require.Equal(t, int64(2), scripts[0].ID)
	require.Equal(t, "", scripts[0].Cron)
	require.True(t, scripts[0].IsRunning())

	require.Equal(t, "Bearer secret", seen.Get("Authorization"))
	require.Equal(t, "batch-123", seen.Get(RequestIDHeader))
}

func TestRequestIDGeneratedWhenAbsent(t *testing.T) {
	var id string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = r.Header.Get(RequestIDHeader)
		_, _ = io.WriteString(w, `[]`)
	}))

	scripts, err := client.ListScripts(context.Background())
	require.NoError(t, err)
	require.Empty(t, scripts)
	require.Len(t, id, 36)
}

func TestRunScriptBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantNil bool
	}{
		{name: "script body", body: `{"id":4,"name":"d","path":"d.sh","last_status":"running"}`},
		{name: "null body", body: `null`, wantNil: true},
		{name: "empty body", body: ``, wantNil: true},
		{name: "acknowledgement only", body: `{"message":"started"}`, wantNil: true},
		{name: "other script", body: `{"id":9,"name":"x","path":"x.sh"}`, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/api/scripts/4/run", r.URL.Path)
				require.Equal(t, http.MethodPost, r.Method)
				_, _ = io.WriteString(w, tt.body)
			}))

			script, err := client.RunScript(context.Background(), 4)
			require.NoError(t, err)
			if tt.wantNil {
				require.Nil(t, script)
				return
			}
			require.NotNil(t, script)
			require.Equal(t, int64(4), script.ID)
		})
	}
}

func TestAPIErrorDetail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Script not found"}`)
	}))

	_, err := client.StopScript(context.Background(), 9)
	require.Error(t, err)
	require.Equal(t, "Script not found", Detail(err))
	require.True(t, errors.Is(err, ErrNotFound))
	require.False(t, IsTransport(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "stop script", apiErr.Op)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestAPIErrorValidationDetail(t *testing.T) {
	body := []byte(`{"detail":[{"loc":["body","name"],"msg":"field required"},{"loc":["body","path"],"msg":"field required"}]}`)
	require.Equal(t, "name: field required; path: field required", parseDetail(body))
	require.Equal(t, "", parseDetail([]byte(`<html>oops</html>`)))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api"
	srv.Close()

	client, err := New(base)
	require.NoError(t, err)
	_, err = client.ListScripts(context.Background())
	require.Error(t, err)
	require.True(t, IsTransport(err))
	require.Equal(t, "", Detail(err))
}

func TestCreateScriptPayload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var fields models.ScriptFields
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
		require.Equal(t, "nightly", fields.Name)
		require.Equal(t, models.DaemonSchedule, fields.Cron)
		_, _ = io.WriteString(w, `{"id":11,"name":"nightly","path":"n.sh","cron":"@daemon","enabled":true}`)
	}))

	fields := models.ScriptFields{Name: "nightly", Path: "n.sh", Enabled: true}
	fields.SetDaemon()
	script, err := client.CreateScript(context.Background(), fields)
	require.NoError(t, err)
	require.True(t, script.IsDaemon())
}

func TestContentRoundTrip(t *testing.T) {
	stored := "echo hi\n"
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/scripts/3/content", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]string{"content": stored})
		case http.MethodPut:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			stored = body["content"]
			_, _ = io.WriteString(w, `{"message":"Content updated"}`)
		}
	}))

	ctx := context.Background()
	require.NoError(t, client.PutContent(ctx, 3, "echo bye\n"))
	got, err := client.GetContent(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, "echo bye\n", got)
}

func TestUploadMultipart(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/upload", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		require.Equal(t, "deploy.py", header.Filename)
		require.Equal(t, "print(1)", string(data))
		_, _ = io.WriteString(w, `{"filename":"deploy.py","path":"/data/scripts/deploy.py"}`)
	}))

	result, err := client.Upload(context.Background(), "/tmp/x/deploy.py", strings.NewReader("print(1)"))
	require.NoError(t, err)
	require.Equal(t, "/data/scripts/deploy.py", result.Path)
}

func TestBackupConfigFromStrings(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"local_backup_enabled":"true","local_backup_cron":null,"cd2_backup_enabled":"false","cd2_webdav_url":"http://dav","cd2_backup_path":""}`)
	}))

	cfg, err := client.GetBackupConfig(context.Background())
	require.NoError(t, err)
	require.True(t, cfg.LocalBackupEnabled)
	require.Equal(t, "0 2 * * *", cfg.LocalBackupCron)
	require.False(t, cfg.CD2BackupEnabled)
	require.Equal(t, "http://dav", cfg.CD2WebDAVURL)
	require.Equal(t, "/ScriptBackups", cfg.CD2BackupPath)
}

func TestBackupHistoryAndDownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/backup/history", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"backups":[{"filename":"a.zip","size":42,"created_at":"2024-02-01T00:00:00","path":"/b/a.zip"}]}`)
	})
	mux.HandleFunc("/api/backup/download/a.zip", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "PK-zip-bytes")
	})
	client := newTestClient(t, mux)

	ctx := context.Background()
	entries, err := client.BackupHistory(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(42), entries[0].Size)

	var buf bytes.Buffer
	n, err := client.DownloadBackup(ctx, "a.zip", &buf)
	require.NoError(t, err)
	require.Equal(t, int64(len("PK-zip-bytes")), n)
	require.Equal(t, "PK-zip-bytes", buf.String())
}

func TestLogStreamURL(t *testing.T) {
	client, err := New("https://runner.example.com/api/")
	require.NoError(t, err)
	require.Equal(t, "wss://runner.example.com/api/logs/5/stream", client.LogStreamURL(5))

	client, err = New("http://localhost:8000/api")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8000/api/logs/12/stream", client.LogStreamURL(12))
}

func TestDialLogStreamReadsFrames(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/logs/7/stream", r.URL.Path)
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()
		_ = conn.Write(ctx, websocket.MessageText, []byte("line 1\n"))
		_ = conn.Write(ctx, websocket.MessageText, []byte("line 2\n"))
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}))

	ctx := context.Background()
	conn, err := client.DialLogStream(ctx, 7)
	require.NoError(t, err)
	defer conn.Close()

	first, err := conn.ReadText(ctx)
	require.NoError(t, err)
	second, err := conn.ReadText(ctx)
	require.NoError(t, err)
	require.Equal(t, "line 1\nline 2\n", first+second)

	_, err = conn.ReadText(ctx)
	require.Error(t, err)
	require.True(t, IsNormalClosure(err))
}
