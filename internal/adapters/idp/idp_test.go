package idp_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/judgeboard/internal/adapters/idp"
	"github.com/okian/judgeboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()

	Convey("Given a local provider", t, func() {
		p, err := idp.New(idp.Config{Kind: "local", AdminEmail: "Admin@Example.com", AdminPassword: "s3cret"})
		So(err, ShouldBeNil)

		Convey("Matching credentials pass with case-insensitive email", func() {
			sub, err := p.Authenticate(ctx, " admin@example.com", "s3cret")
			So(err, ShouldBeNil)
			So(sub.ID, ShouldEqual, "admin@example.com")
		})

		Convey("A wrong password is unauthorized", func() {
			_, err := p.Authenticate(ctx, "admin@example.com", "nope")
			So(errors.Is(err, idp.ErrInvalidCredentials), ShouldBeTrue)
			So(errors.Is(err, model.ErrUnauthorized), ShouldBeTrue)
		})
	})

	Convey("A local provider without credentials is refused", t, func() {
		_, err := idp.NewLocal("", "")
		So(err, ShouldNotBeNil)
		_, err = idp.New(idp.Config{Kind: "saml"})
		So(errors.Is(err, idp.ErrUnknownProvider), ShouldBeTrue)
	})
}

func TestOAuth2(t *testing.T) {
	ctx := context.Background()

	Convey("Given a token endpoint", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			switch {
			case r.Form.Get("grant_type") != "password":
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"unsupported_grant_type"}`))
			case r.Form.Get("username") == "down@example.com":
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"temporarily_unavailable"}`))
			case r.Form.Get("password") != "pw":
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			default:
				_, _ = w.Write([]byte(`{"access_token":"at","token_type":"bearer","expires_in":60,"sub":"u-1","name":"Root Admin"}`))
			}
		}))
		Reset(srv.Close)

		p, err := idp.New(idp.Config{Kind: "oauth2", TokenURL: srv.URL, ClientID: "judgeboard", ClientSecret: "cs"})
		So(err, ShouldBeNil)

		Convey("Valid credentials yield the provider's subject", func() {
			sub, err := p.Authenticate(ctx, "root@example.com", "pw")
			So(err, ShouldBeNil)
			So(sub.ID, ShouldEqual, "u-1")
			So(sub.Name, ShouldEqual, "Root Admin")
			So(sub.Email, ShouldEqual, "root@example.com")
		})

		Convey("Rejected credentials are unauthorized", func() {
			_, err := p.Authenticate(ctx, "root@example.com", "bad")
			So(errors.Is(err, idp.ErrInvalidCredentials), ShouldBeTrue)
		})

		Convey("Provider failures are upstream errors", func() {
			_, err := p.Authenticate(ctx, "down@example.com", "pw")
			So(errors.Is(err, model.ErrUpstream), ShouldBeTrue)
		})
	})
}
