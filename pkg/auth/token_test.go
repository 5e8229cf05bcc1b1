package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MyGameListPlaceholder/my-game-list-backend/internal/testutil"
	"github.com/rs/zerolog"
)

func newTestProvider(tokenURL, clientID, clientSecret string) *Provider {
	return NewProvider(Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}, zerolog.Nop())
}

func TestObtainAccessToken_Success(t *testing.T) {
	mock := testutil.NewMockIGDB()
	defer mock.Close()

	p := newTestProvider(mock.TokenURL(), testutil.MockClientID, testutil.MockClientSecret)

	before := time.Now()
	token, err := p.ObtainAccessToken(context.Background())
	if err != nil {
		t.Fatalf("ObtainAccessToken() error = %v", err)
	}

	if token.Token != testutil.MockAccessToken {
		t.Errorf("Token = %q, want %q", token.Token, testutil.MockAccessToken)
	}
	if token.ExpiresIn != 5184000 {
		t.Errorf("ExpiresIn = %d, want 5184000", token.ExpiresIn)
	}
	if token.TokenType != "bearer" {
		t.Errorf("TokenType = %q, want bearer", token.TokenType)
	}
	if token.ObtainedAt.Before(before) {
		t.Errorf("ObtainedAt = %v, want >= %v", token.ObtainedAt, before)
	}
	if token.Expired(time.Now()) {
		t.Error("fresh token reported as expired")
	}
	if got := mock.GetTokenCount(); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
}

func TestObtainAccessToken_NoCaching(t *testing.T) {
	mock := testutil.NewMockIGDB()
	defer mock.Close()

	p := newTestProvider(mock.TokenURL(), testutil.MockClientID, testutil.MockClientSecret)
	for i := 0; i < 2; i++ {
		if _, err := p.ObtainAccessToken(context.Background()); err != nil {
			t.Fatalf("ObtainAccessToken() error = %v", err)
		}
	}

	if got := mock.GetTokenCount(); got != 2 {
		t.Errorf("token requests = %d, want 2", got)
	}
}

func TestObtainAccessToken_Failures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantErr    error
	}{
		{
			name: "rejected credentials",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"status":403,"message":"invalid client secret"}`))
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "server error without body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "empty token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"access_token":"","expires_in":10,"token_type":"bearer"}`))
			},
			wantStatus: http.StatusOK,
			wantErr:    ErrEmptyToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			p := newTestProvider(server.URL, "id", "secret")
			_, err := p.ObtainAccessToken(context.Background())

			var authErr *AuthenticationError
			if !errors.As(err, &authErr) {
				t.Fatalf("error = %v, want *AuthenticationError", err)
			}
			if authErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", authErr.StatusCode, tt.wantStatus)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantErr)
			}
		})
	}
}

func TestObtainAccessToken_UpstreamMessage(t *testing.T) {
	mock := testutil.NewMockIGDB()
	defer mock.Close()

	p := newTestProvider(mock.TokenURL(), testutil.MockClientID, "wrong")
	_, err := p.ObtainAccessToken(context.Background())

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want *AuthenticationError", err)
	}
	if authErr.Message != "invalid client secret" {
		t.Errorf("Message = %q, want %q", authErr.Message, "invalid client secret")
	}
}

func TestObtainAccessToken_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p := newTestProvider(url, "id", "secret")
	_, err := p.ObtainAccessToken(context.Background())

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want *AuthenticationError", err)
	}
	if authErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", authErr.StatusCode)
	}
	if authErr.Err == nil {
		t.Error("Err should carry the transport error")
	}
}

func TestNewProvider_Defaults(t *testing.T) {
	p := NewProvider(Config{ClientID: "id", ClientSecret: "secret"}, zerolog.Nop())

	if p.config.TokenURL != DefaultTokenURL {
		t.Errorf("TokenURL = %q, want %q", p.config.TokenURL, DefaultTokenURL)
	}
	if p.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", p.config.Timeout, DefaultTimeout)
	}
}

func TestAccessToken_ExpiresAt(t *testing.T) {
	obtained := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	token := AccessToken{ExpiresIn: 3600, ObtainedAt: obtained}

	if got := token.ExpiresAt(); !got.Equal(obtained.Add(time.Hour)) {
		t.Errorf("ExpiresAt() = %v", got)
	}
	if token.Expired(obtained.Add(59 * time.Minute)) {
		t.Error("token expired too early")
	}
	if !token.Expired(obtained.Add(time.Hour)) {
		t.Error("token should be expired at ExpiresAt")
	}
}

func TestSetHTTPClient_LeavesCallerClientUntouched(t *testing.T) {
	mock := testutil.NewMockIGDB()
	defer mock.Close()

	shared := &http.Client{Timeout: time.Minute}
	p := newTestProvider(mock.TokenURL(), testutil.MockClientID, testutil.MockClientSecret)
	p.SetHTTPClient(shared)

	if _, err := p.ObtainAccessToken(context.Background()); err != nil {
		t.Fatalf("ObtainAccessToken() error = %v", err)
	}

	if shared.Timeout != time.Minute {
		t.Errorf("shared client Timeout = %v, want %v", shared.Timeout, time.Minute)
	}
	if shared.CheckRedirect != nil {
		t.Error("shared client CheckRedirect was replaced")
	}
}
