package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
)

type stubReader struct {
	albums  map[string][]string
	members map[string][]string
	items   map[string]*model.Item
	err     error
}

func (s *stubReader) ListAlbums(context.Context) (map[string][]string, error) {
	return s.albums, s.err
}

func (s *stubReader) AlbumMembers(_ context.Context, album string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.members[album], nil
}

func (s *stubReader) GetItem(_ context.Context, hash string) (*model.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.items[hash], nil
}

func serve(t *testing.T, reader Reader, path string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(NewHandlers(reader, gallery.NewNopLogger()))
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestListAlbums(t *testing.T) {
	reader := &stubReader{albums: map[string][]string{
		gallery.SourceNamespace: {"Trip"},
		gallery.DateNamespace:   {"2020/1/2"},
	}}

	rr := serve(t, reader, "/api/albums")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got AlbumsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !slices.Equal(got.Source, []string{"Trip"}) || !slices.Equal(got.Date, []string{"2020/1/2"}) {
		t.Errorf("response = %+v", got)
	}
}

func TestListAlbums_Error(t *testing.T) {
	rr := serve(t, &stubReader{err: gallery.ErrUnknownAlbumNamespace}, "/api/albums")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "error") {
		t.Errorf("body = %q, want JSON error", rr.Body.String())
	}
}

func TestAlbumItems(t *testing.T) {
	reader := &stubReader{members: map[string][]string{
		"source/Summer Trip": {"h1", "h2"},
		"date/2021/7/4":      {"h3"},
	}}

	tests := []struct {
		name  string
		path  string
		album string
		items []string
	}{
		{name: "source album with space", path: "/api/albums/source/Summer%20Trip/items", album: "source/Summer Trip", items: []string{"h1", "h2"}},
		{name: "date album", path: "/api/albums/date/2021/7/4/items", album: "date/2021/7/4", items: []string{"h3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, reader, tt.path)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}

			var got AlbumItemsResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if got.Album != tt.album || !slices.Equal(got.Items, tt.items) {
				t.Errorf("response = %+v, want album %q items %v", got, tt.album, tt.items)
			}
		})
	}
}

func TestGetItem(t *testing.T) {
	ts := int64(1500000000)
	reader := &stubReader{items: map[string]*model.Item{
		"abc": {
			ContentHash: "abc",
			ContentType: "image/jpeg",
			CaptureTime: &ts,
			Locations:   []string{"Takeout/Google Photos/Trip/a.jpg"},
			Albums:      []string{"source/Trip"},
		},
	}}

	t.Run("found", func(t *testing.T) {
		rr := serve(t, reader, "/api/items/abc")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		var got ItemResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if got.ContentHash != "abc" || got.CaptureTime == nil || *got.CaptureTime != ts {
			t.Errorf("response = %+v", got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rr := serve(t, reader, "/api/items/nope")
		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rr.Code)
		}
	})

	t.Run("store error", func(t *testing.T) {
		rr := serve(t, &stubReader{err: errors.New("db down")}, "/api/items/abc")
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rr.Code)
		}
	})
}

func TestHealthAndMetrics(t *testing.T) {
	rr := serve(t, &stubReader{}, "/healthz")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("/healthz = %d %q", rr.Code, rr.Body.String())
	}

	rr = serve(t, &stubReader{}, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "gallery_http_requests_total") {
		t.Error("/metrics does not expose gallery_http_requests_total")
	}
}

func TestUnknownRoute(t *testing.T) {
	rr := serve(t, &stubReader{}, "/api/unknown")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
