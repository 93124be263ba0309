package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/render"
	"github.com/hitoshi/postline/internal/security"
)

func newTestResponder(t *testing.T) *Responder {
	t.Helper()
	renderer, err := render.New(security.NewContentFormatter())
	require.NoError(t, err)
	return NewResponder(renderer, ResponderConfig{MaxUploadSize: 1 << 10}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRequest_URI(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  string
	}{
		{"クエリなし", nil, "/follow/"},
		{"クエリあり", url.Values{"page": {"2"}}, "/follow/?page=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{Path: "/follow/", Query: tt.query}
			assert.Equal(t, tt.want, req.URI())
		})
	}
}

func TestRequest_ParamInt64(t *testing.T) {
	req := &Request{Params: map[string]string{"id": "42", "slug": "go"}}

	id, ok := req.ParamInt64("id")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = req.ParamInt64("slug")
	assert.False(t, ok)
	_, ok = req.ParamInt64("missing")
	assert.False(t, ok)
}

func TestRequest_PageNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 1},
		{"3", 3},
		{"abc", 1},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			req := &Request{Query: url.Values{"page": {tt.raw}}}
			assert.Equal(t, tt.want, req.PageNumber())
		})
	}
}

func TestHandle_CollectsRouteParamsAndForm(t *testing.T) {
	rs := newTestResponder(t)
	var got *Request

	r := chi.NewRouter()
	r.Post("/posts/{id}/comment/", rs.Handle(func(_ context.Context, req *Request) (*Response, error) {
		got = req
		return RedirectTo("/done/"), nil
	}))

	body := strings.NewReader(url.Values{"text": {"コメント"}}.Encode())
	httpReq := httptest.NewRequest(http.MethodPost, "/posts/7/comment/?page=2", body)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httpReq)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/done/", w.Header().Get("Location"))
	require.NotNil(t, got)
	assert.Equal(t, "7", got.Param("id"))
	assert.Equal(t, "コメント", got.Form.Get("text"))
	// クエリの値はフォームに混ざらない
	assert.Empty(t, got.Form.Get("page"))
	assert.Nil(t, got.User)
	assert.Nil(t, got.Image)
}

func TestHandle_ReadsUploadedImage(t *testing.T) {
	rs := newTestResponder(t)
	var got *Request

	handler := rs.Handle(func(_ context.Context, req *Request) (*Response, error) {
		got = req
		return &Response{Status: http.StatusOK}, nil
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("text", "画像つき"))
	fw, err := mw.CreateFormFile(imageField, "dot.png")
	require.NoError(t, err)
	_, err = fw.Write(pngImage)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	httpReq := httptest.NewRequest(http.MethodPost, "/create/", &buf)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	handler(httptest.NewRecorder(), httpReq)

	require.NotNil(t, got)
	require.NotNil(t, got.Image)
	assert.Equal(t, "dot.png", got.Image.Filename)
	assert.Equal(t, "image/png", got.Image.ContentType)
	assert.Equal(t, pngImage, got.Image.Data)
	assert.Equal(t, "画像つき", got.Form.Get("text"))
}

// 上限を超えるファイルは上限+1バイトで読み込みを打ち切る
func TestHandle_TruncatesOversizedUpload(t *testing.T) {
	rs := newTestResponder(t)
	var got *Request

	handler := rs.Handle(func(_ context.Context, req *Request) (*Response, error) {
		got = req
		return &Response{Status: http.StatusOK}, nil
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(imageField, "big.png")
	require.NoError(t, err)
	_, err = fw.Write(append(append([]byte{}, pngImage...), make([]byte, 4<<10)...))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	httpReq := httptest.NewRequest(http.MethodPost, "/create/", &buf)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	handler(httptest.NewRecorder(), httpReq)

	require.NotNil(t, got)
	require.NotNil(t, got.Image)
	assert.Len(t, got.Image.Data, 1<<10+1)
}

func TestHandle_BodyTooLarge(t *testing.T) {
	rs := newTestResponder(t)
	called := false
	handler := rs.Handle(func(context.Context, *Request) (*Response, error) {
		called = true
		return &Response{}, nil
	})

	httpReq := httptest.NewRequest(http.MethodPost, "/create/", strings.NewReader("text="+strings.Repeat("a", 100)))
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	httpReq.Body = http.MaxBytesReader(w, httpReq.Body, 10)
	handler(w, httpReq)

	assert.False(t, called)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "REQUEST_TOO_LARGE", w.Header().Get("X-Error-Code"))
}

func TestHandleServiceError(t *testing.T) {
	rs := newTestResponder(t)

	tests := []struct {
		name         string
		req          *Request
		err          error
		wantStatus   int
		wantRedirect string
	}{
		{
			name:       "not found",
			req:        &Request{Path: "/posts/9/"},
			err:        model.NewPostNotFoundError(9),
			wantStatus: http.StatusNotFound,
		},
		{
			name:         "unauthenticated",
			req:          &Request{Path: "/follow/", Query: url.Values{"page": {"2"}}},
			err:          model.NewUnauthenticatedError(),
			wantStatus:   http.StatusFound,
			wantRedirect: "/auth/login/?next=%2Ffollow%2F%3Fpage%3D2",
		},
		{
			name:         "forbidden with post id",
			req:          &Request{Path: "/posts/5/edit/", Params: map[string]string{"id": "5"}},
			err:          model.NewForbiddenError(),
			wantStatus:   http.StatusFound,
			wantRedirect: "/posts/5/",
		},
		{
			name:         "forbidden without post id",
			req:          &Request{Path: "/somewhere/", Params: map[string]string{}},
			err:          model.NewForbiddenError(),
			wantStatus:   http.StatusFound,
			wantRedirect: "/",
		},
		{
			name:         "validation",
			req:          &Request{Path: "/create/"},
			err:          model.NewValidationError(map[string][]string{"text": {"必須"}}),
			wantStatus:   http.StatusFound,
			wantRedirect: "/create/",
		},
		{
			name:       "wrapped not found",
			req:        &Request{Path: "/group/x/"},
			err:        fmt.Errorf("lookup: %w", model.NewGroupNotFoundError("x")),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unexpected",
			req:        &Request{Path: "/"},
			err:        errors.New("db down"),
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := rs.handleServiceError(tt.req, tt.err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantRedirect, res.Redirect)
		})
	}
}

func TestWriteResponse(t *testing.T) {
	t.Run("既定のContent-Type", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeResponse(w, httptest.NewRequest(http.MethodGet, "/", nil), &Response{Body: []byte("<p>hi</p>")})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, "<p>hi</p>", w.Body.String())
	})

	t.Run("HEADは本文を書かない", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeResponse(w, httptest.NewRequest(http.MethodHead, "/", nil), &Response{Status: http.StatusOK, Body: []byte("body")})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("リダイレクトとCookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeResponse(w, httptest.NewRequest(http.MethodPost, "/auth/login/", nil), &Response{
			Redirect: "/follow/",
			Cookies:  []*http.Cookie{{Name: "session_id", Value: "abc"}},
		})

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/follow/", w.Header().Get("Location"))
		require.Len(t, w.Result().Cookies(), 1)
		assert.Equal(t, "abc", w.Result().Cookies()[0].Value)
	})
}
