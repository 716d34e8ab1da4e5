// Command capnprpc-echo wires two in-process Conns together over a
// paired transport and bootstraps a trivial capability that echoes
// back whatever struct it's called with. It exists to exercise the
// engine end to end without a real network socket.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
	"github.com/kasvtv/capnp-rpc-engine/internal/logtransport"
	"github.com/kasvtv/capnp-rpc-engine/internal/pipetransport"
	"github.com/kasvtv/capnp-rpc-engine/rpc"
)

// echoMethod is an arbitrary interface/method pair; nothing in this
// demo cares what it means.
var echoMethod = capnp.Method{InterfaceID: 0xecc0, MethodID: 0}

type echoClient struct{}

func (echoClient) Call(ctx context.Context, call *capnp.Call) capnp.Answer {
	return capnp.ImmediateAnswer(call.Params)
}

func (echoClient) Close() error { return nil }

func main() {
	logWire := flag.Bool("log-wire", false, "log raw frames crossing the pipe")
	flag.Parse()

	serverSide, clientSide := pipetransport.New()
	if *logWire {
		serverSide = logtransport.New(log.New(log.Writer(), "server: ", log.LstdFlags), serverSide)
		clientSide = logtransport.New(log.New(log.Writer(), "client: ", log.LstdFlags), clientSide)
	}

	server := rpc.NewConn(serverSide,
		rpc.MainInterface(echoClient{}),
		rpc.LocalAddr("server"))
	defer server.Close()

	client := rpc.NewConn(clientSide, rpc.LocalAddr("client"))
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	root := client.Bootstrap(ctx)
	defer root.Close()

	_, seg, err := capnp.NewMessage()
	if err != nil {
		log.Fatalf("new message: %v", err)
	}
	params, err := capnp.NewStruct(seg, capnp.ObjectSize{DataSize: 8})
	if err != nil {
		log.Fatalf("new params: %v", err)
	}
	params.SetUint64(0, 42)

	ans := root.Call(ctx, &capnp.Call{Ctx: ctx, Method: echoMethod, Params: params})
	result, err := ans.Struct()
	if err != nil {
		log.Fatalf("call failed: %v", err)
	}
	log.Printf("echoed value: %d", result.Uint64(0))

	snap := client.Snapshot(time.Now().UnixNano())
	log.Printf("client snapshot: %+v", snap)
}
