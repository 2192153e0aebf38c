package publish

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type botCall struct {
	method string
	values map[string]string
	file   string
}

func newFakeBotAPI(t *testing.T) (*httptest.Server, *[]botCall) {
	t.Helper()

	var mu sync.Mutex
	var calls []botCall

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		call := botCall{method: method, values: map[string]string{}}

		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("Failed to parse multipart form: %v", err)
			}
			for k, v := range r.MultipartForm.Value {
				call.values[k] = v[0]
			}
			for _, headers := range r.MultipartForm.File {
				f, _ := headers[0].Open()
				data, _ := io.ReadAll(f)
				f.Close()
				call.file = headers[0].Filename + ":" + string(data)
			}
		} else {
			r.ParseForm()
			for k, v := range r.PostForm {
				call.values[k] = v[0]
			}
		}

		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "getMe":
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Relay","username":"relay_bot"}}`))
		case "sendVideo":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: file is too big"}`))
		default:
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":1714651200,"chat":{"id":-1001,"type":"channel"}}}`))
		}
	}))

	return server, &calls
}

func TestParseChatTarget(t *testing.T) {
	target, err := ParseChatTarget("@osetia_lenta")
	if err != nil || target.Username != "@osetia_lenta" || target.ID != 0 {
		t.Errorf("Expected username target, got %+v, %v", target, err)
	}

	target, err = ParseChatTarget("-1001234567890")
	if err != nil || target.ID != -1001234567890 {
		t.Errorf("Expected numeric target, got %+v, %v", target, err)
	}
	if target.String() != "-1001234567890" {
		t.Errorf("Expected id string, got %s", target.String())
	}

	for _, bad := range []string{"", "osetia_lenta", "12ab"} {
		if _, err := ParseChatTarget(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestTelegramMessenger(t *testing.T) {
	server, calls := newFakeBotAPI(t)
	defer server.Close()

	bot, err := NewBot("TOKEN", server.URL+"/bot%s/%s", 5*time.Second)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	target, _ := ParseChatTarget("@osetia_lenta")
	m := NewTelegramMessenger(bot, target, 0)
	ctx := context.Background()

	if err := m.SendText(ctx, "<b>Hello</b>"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := m.SendPhoto(ctx, strings.NewReader("jpeg"), "pic.jpg", "<i>caption</i>"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := m.SendVideo(ctx, strings.NewReader("mp4"), "clip.mp4", "caption"); err == nil {
		t.Error("Expected error from rejected video")
	}

	byMethod := map[string]botCall{}
	for _, c := range *calls {
		byMethod[c.method] = c
	}

	text := byMethod["sendMessage"]
	if text.values["chat_id"] != "@osetia_lenta" || text.values["text"] != "<b>Hello</b>" || text.values["parse_mode"] != "HTML" {
		t.Errorf("Unexpected sendMessage params: %v", text.values)
	}

	photo := byMethod["sendPhoto"]
	if photo.values["caption"] != "<i>caption</i>" || photo.values["parse_mode"] != "HTML" {
		t.Errorf("Unexpected sendPhoto params: %v", photo.values)
	}
	if photo.file != "pic.jpg:jpeg" {
		t.Errorf("Expected uploaded pic.jpg, got %q", photo.file)
	}

	video := byMethod["sendVideo"]
	if video.values["supports_streaming"] != "true" {
		t.Errorf("Expected streaming flag, got %v", video.values)
	}
}

func TestTelegramMessengerRateLimit(t *testing.T) {
	server, _ := newFakeBotAPI(t)
	defer server.Close()

	bot, err := NewBot("TOKEN", server.URL+"/bot%s/%s", 5*time.Second)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	m := NewTelegramMessenger(bot, ChatTarget{ID: -1001}, 200*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := m.SendText(context.Background(), "ping"); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed < 350*time.Millisecond {
		t.Errorf("Expected sends to be paced, took %v", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.SendText(ctx, "late"); err == nil {
		t.Error("Expected error when context is cancelled while waiting")
	}
}
