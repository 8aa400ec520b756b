package authjwt_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/judgeboard/internal/adapters/authjwt"
	"github.com/okian/judgeboard/internal/domain/identity"
	"github.com/okian/judgeboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestIssuer(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	judge := identity.Identity{Kind: identity.KindJudge, Subject: "j-1", Name: "Ada"}

	Convey("Given an issuer", t, func() {
		iss, err := authjwt.NewIssuer("top-secret", authjwt.WithTTL(time.Hour), authjwt.WithClock(clock))
		So(err, ShouldBeNil)

		signed, err := iss.Issue(judge)
		So(err, ShouldBeNil)
		So(signed.Token, ShouldNotBeEmpty)
		So(signed.IssuedAt, ShouldEqual, now)
		So(signed.ExpiresAt, ShouldEqual, now.Add(time.Hour))

		Convey("A fresh token verifies to the same identity", func() {
			got, err := iss.Verify(signed.Token)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, signed)
		})

		Convey("An expired token is refused", func() {
			later, _ := authjwt.NewIssuer("top-secret", authjwt.WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
			_, err := later.Verify(signed.Token)
			So(errors.Is(err, authjwt.ErrExpiredToken), ShouldBeTrue)
			So(errors.Is(err, model.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("A token signed with another secret is refused", func() {
			other, _ := authjwt.NewIssuer("other", authjwt.WithClock(clock))
			_, err := other.Verify(signed.Token)
			So(errors.Is(err, authjwt.ErrInvalidSignature), ShouldBeTrue)
		})

		Convey("An unsigned token is refused", func() {
			raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
				"sub": "j-1", "kind": "admin", "iss": "judgeboard",
			}).SignedString(jwt.UnsafeAllowNoneSignatureType)
			So(err, ShouldBeNil)
			_, err = iss.Verify(raw)
			So(errors.Is(err, model.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("Garbage is refused", func() {
			_, err := iss.Verify("not-a-token")
			So(errors.Is(err, authjwt.ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the subject's sessions are revoked", func() {
			iss.Revoke("j-1")

			Convey("Then earlier tokens are refused and new ones work", func() {
				_, err := iss.Verify(signed.Token)
				So(errors.Is(err, authjwt.ErrRevokedToken), ShouldBeTrue)

				again, err := iss.Issue(judge)
				So(err, ShouldBeNil)
				_, err = iss.Verify(again.Token)
				So(err, ShouldBeNil)
			})

			Convey("Then other subjects are unaffected", func() {
				team, err := iss.Issue(identity.Identity{Kind: identity.KindTeam, Subject: "t-1", Name: "X"})
				So(err, ShouldBeNil)
				_, err = iss.Verify(team.Token)
				So(err, ShouldBeNil)
			})
		})
	})

	Convey("An empty secret is refused", t, func() {
		_, err := authjwt.NewIssuer("")
		So(err, ShouldNotBeNil)
	})
}
