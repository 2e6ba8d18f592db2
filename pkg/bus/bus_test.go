package bus

import (
	"context"
	"testing"

	"github.com/amer-bots/amerlink/pkg/platform"
)

func TestInboundRoundtrip(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()
	ctx := context.Background()

	in := InboundMessage{Platform: platform.QQ, OriginID: "g1", SenderID: "u1", Content: "hi"}
	if err := mb.PublishInbound(ctx, in); err != nil {
		t.Fatal(err)
	}
	got, ok := mb.ConsumeInbound(ctx)
	if !ok || got.Content != "hi" || got.Platform != platform.QQ {
		t.Fatalf("got %+v ok=%v", got, ok)
	}
}

func TestOutboundRoundtrip(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()
	ctx := context.Background()

	out := OutboundMessage{Platform: platform.Yunhu, TargetID: "r1", Content: "relayed"}
	if err := mb.PublishOutbound(ctx, out); err != nil {
		t.Fatal(err)
	}
	got, ok := mb.SubscribeOutbound(ctx)
	if !ok || got.TargetID != "r1" {
		t.Fatalf("got %+v ok=%v", got, ok)
	}
}

func TestClosedBusRejectsPublish(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	if err := mb.PublishInbound(context.Background(), InboundMessage{}); err != ErrBusClosed {
		t.Fatalf("err = %v, want ErrBusClosed", err)
	}
	if _, ok := mb.ConsumeInbound(context.Background()); ok {
		t.Fatal("consume on closed bus must report not ok")
	}
}

func TestCancelledContext(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Fatal("cancelled consume must report not ok")
	}
}
