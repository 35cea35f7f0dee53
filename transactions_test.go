package roomclient

import (
	"encoding/json"
	"testing"

	"github.com/meshvoice/roomclient/protocol"
)

func TestTransactionResolvesExactlyOnce(t *testing.T) {
	table := newTransactionTable()
	ch := table.register("t1")

	env := &protocol.Envelope{Transaction: "t1", Type: "ack"}
	if !table.dispatch(env) {
		t.Fatal("first dispatch found no pending transaction")
	}
	select {
	case got := <-ch:
		if got != env {
			t.Fatalf("resolved envelope = %p, want %p", got, env)
		}
	default:
		t.Fatal("dispatch did not deliver the envelope")
	}

	if table.dispatch(env) {
		t.Fatal("second dispatch resolved an already resolved transaction")
	}
}

func TestTransactionNeverResolvesAfterRemoval(t *testing.T) {
	table := newTransactionTable()
	ch := table.register("t1")

	if !table.remove("t1") {
		t.Fatal("remove found no pending transaction")
	}
	if table.dispatch(&protocol.Envelope{Transaction: "t1", Type: "ack"}) {
		t.Fatal("dispatch resolved a removed transaction")
	}
	select {
	case env := <-ch:
		t.Fatalf("channel delivered %+v after removal", env)
	default:
	}

	if table.remove("t1") {
		t.Fatal("second remove reported a pending transaction")
	}
}

func TestTransactionDispatchUnknownID(t *testing.T) {
	table := newTransactionTable()
	if table.dispatch(&protocol.Envelope{Transaction: "never-registered", Type: "ack"}) {
		t.Fatal("dispatch resolved a transaction that was never registered")
	}
}

func TestTransactionIndependentIDs(t *testing.T) {
	table := newTransactionTable()
	chA := table.register("a")
	chB := table.register("b")

	if !table.dispatch(&protocol.Envelope{Transaction: "b", Type: "ack", Load: json.RawMessage(`1`)}) {
		t.Fatal("dispatch for b failed")
	}
	select {
	case <-chA:
		t.Fatal("reply for b resolved transaction a")
	default:
	}
	select {
	case env := <-chB:
		if env.Transaction != "b" {
			t.Fatalf("resolved transaction %q, want b", env.Transaction)
		}
	default:
		t.Fatal("reply for b not delivered")
	}
}
