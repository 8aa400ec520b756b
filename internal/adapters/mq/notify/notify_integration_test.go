//go:build integration

package notify_test

import (
	"context"
	"testing"
	"time"

	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"

	"github.com/okian/judgeboard/internal/adapters/mq/notify"
	"github.com/okian/judgeboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBus_RoundTrip(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	ctx := context.Background()
	container, err := tcnats.Run(ctx, "nats:2.10-alpine")
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })
	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	Convey("Given two buses on one subject", t, func() {
		sub, err := notify.Connect(url, notify.WithSubject("test.session"))
		So(err, ShouldBeNil)
		defer sub.Close()
		pub, err := notify.Connect(url, notify.WithSubject("test.session"))
		So(err, ShouldBeNil)
		defer pub.Close()

		got := make(chan notify.Notification, 1)
		So(sub.Subscribe(ctx, func(_ context.Context, n notify.Notification) error {
			got <- n
			return nil
		}), ShouldBeNil)

		So(pub.Publish(ctx, notify.Notification{Subject: "j-1", Reason: notify.ReasonSignOut}), ShouldBeNil)

		select {
		case n := <-got:
			So(n.Subject, ShouldEqual, "j-1")
			So(n.At.IsZero(), ShouldBeFalse)
		case <-time.After(5 * time.Second):
			t.Fatal("notification not delivered")
		}
	})
}
