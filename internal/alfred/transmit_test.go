package alfred

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/danmuck/alfredd/internal/wire"
)

func TestPushFragmentsLargeCache(t *testing.T) {
	sender := &fakeSender{}
	core := newTestCore(ModeMaster, sender, newStaticResolver())
	core.MaxPayload = 1500
	iface := testInterface()
	core.AddInterface(iface)

	now := time.Now()
	const n = 200
	for i := 0; i < n; i++ {
		var mac MAC
		mac[0] = byte(i)
		mac[1] = byte(i >> 8)
		core.Cache.UpsertLocal(mac, 1, 1, make([]byte, 512), now)
	}

	dest := net.ParseIP("fe80::1")
	core.Push(iface, dest, SourceLocal, NoFilter, 99)

	var pushCount int
	var totalRecords int
	var txEnd *wire.TxEndBody
	for _, sf := range sender.sent {
		switch sf.Frame.Header.Type {
		case wire.PushData:
			pushCount++
			totalRecords += len(sf.Frame.PushData.Records)
		case wire.StatusTxEnd:
			body := sf.Frame.TxEnd
			txEnd = &body
		}
	}

	budget := core.MaxPayload - wire.HeaderLen - pushDataBodyHeaderLen
	recSize := wire.DatasetRecordHeaderLen + 512
	perPacket := budget / recSize
	wantPackets := (n + perPacket - 1) / perPacket

	if pushCount != wantPackets {
		t.Fatalf("expected %d packets, got %d", wantPackets, pushCount)
	}
	if totalRecords != n {
		t.Fatalf("expected %d total records across packets, got %d", n, totalRecords)
	}
	if txEnd == nil || int(txEnd.Seqno) != pushCount {
		t.Fatalf("expected txend seqno %d, got %+v", pushCount, txEnd)
	}
}

func TestPushSkipsOversizedRecordSilently(t *testing.T) {
	sender := &fakeSender{}
	core := newTestCore(ModeMaster, sender, newStaticResolver())
	core.MaxPayload = 64
	iface := testInterface()
	core.AddInterface(iface)

	now := time.Now()
	small := MAC{1, 1, 1, 1, 1, 1}
	huge := MAC{2, 2, 2, 2, 2, 2}
	core.Cache.UpsertLocal(small, 1, 1, []byte("ok"), now)
	core.Cache.UpsertLocal(huge, 2, 1, make([]byte, 1000), now)

	core.Push(iface, net.ParseIP("fe80::1"), SourceLocal, NoFilter, 1)

	var records []wire.DatasetRecord
	for _, sf := range sender.sent {
		if sf.Frame.Header.Type == wire.PushData {
			records = append(records, sf.Frame.PushData.Records...)
		}
	}
	if len(records) != 1 || records[0].Type != 1 {
		t.Fatalf("expected only the small record to be pushed, got %v", records)
	}
}

func TestPushEmptyCacheNoFilterSendsNoTxEnd(t *testing.T) {
	sender := &fakeSender{}
	core := newTestCore(ModeMaster, sender, newStaticResolver())
	iface := testInterface()
	core.AddInterface(iface)

	core.Push(iface, net.ParseIP("fe80::1"), SourceLocal, NoFilter, 5)

	if len(sender.sent) != 0 {
		t.Fatalf("expected no frames for an empty, unfiltered push, got %d", len(sender.sent))
	}
}

func TestAnnounceMasterSendsOnEveryInterface(t *testing.T) {
	sender := &fakeSender{}
	core := newTestCore(ModeMaster, sender, newStaticResolver())
	for i := 0; i < 3; i++ {
		iface := testInterface()
		iface.Name = fmt.Sprintf("if%d", i)
		core.AddInterface(iface)
	}

	core.AnnounceMaster()

	if len(sender.sent) != 3 {
		t.Fatalf("expected one ANNOUNCE_MASTER per interface, got %d", len(sender.sent))
	}
	for _, sf := range sender.sent {
		if sf.Frame.Header.Type != wire.AnnounceMaster {
			t.Fatalf("expected ANNOUNCE_MASTER frames only, got %v", sf.Frame.Header.Type)
		}
	}
}

func TestPushLocalDataNoopWithoutBestServer(t *testing.T) {
	sender := &fakeSender{}
	core := newTestCore(ModeSlave, sender, newStaticResolver())
	core.AddInterface(testInterface())

	if core.PushLocalData() {
		t.Fatalf("expected PushLocalData to report failure without a best server")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no frames sent without a best server")
	}
}

func TestPushLocalDataPushesToBestServer(t *testing.T) {
	sender := &fakeSender{}
	core := newTestCore(ModeSlave, sender, newStaticResolver())
	iface := testInterface()
	core.AddInterface(iface)
	core.Cache.UpsertLocal(MAC{3, 3, 3, 3, 3, 3}, 7, 1, []byte("local"), time.Now())

	best := &Peer{HWAddr: MAC{9, 9, 9, 9, 9, 9}, Address: net.ParseIP("fe80::50")}
	core.SetBestServer(best)

	if !core.PushLocalData() {
		t.Fatalf("expected PushLocalData to report success with a best server set")
	}
	if len(sender.sent) == 0 {
		t.Fatalf("expected frames to be sent to the best server")
	}
	for _, sf := range sender.sent {
		if !sf.Dest.Equal(best.Address) {
			t.Fatalf("expected every frame addressed to the best server, got %v", sf.Dest)
		}
	}
}

func TestElectBestServerPicksHighestTQAcrossInterfaces(t *testing.T) {
	sender := &fakeSender{}
	core := newTestCore(ModeSlave, sender, newStaticResolver())
	ifaceA := testInterface()
	ifaceA.Name = "eth0"
	ifaceB := testInterface()
	ifaceB.Name = "eth1"
	core.AddInterface(ifaceA)
	core.AddInterface(ifaceB)

	now := time.Now()
	weak := MAC{1, 1, 1, 1, 1, 1}
	strong := MAC{2, 2, 2, 2, 2, 2}
	ifaceA.Peers.OnAnnounce(weak, net.ParseIP("fe80::1"), now)
	ifaceA.Peers.UpdateTQ(weak, 10)
	ifaceB.Peers.OnAnnounce(strong, net.ParseIP("fe80::2"), now)
	ifaceB.Peers.UpdateTQ(strong, 200)

	core.ElectBestServer()

	if core.BestServer == nil || core.BestServer.HWAddr != strong {
		t.Fatalf("expected the highest-TQ peer across interfaces to be elected, got %+v", core.BestServer)
	}
}

func TestRequestPullSendsRequestFrame(t *testing.T) {
	sender := &fakeSender{}
	core := newTestCore(ModeSlave, sender, newStaticResolver())
	iface := testInterface()
	core.AddInterface(iface)

	dest := net.ParseIP("fe80::1")
	core.RequestPull(iface, dest, 3, 42)

	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one REQUEST frame, got %d", len(sender.sent))
	}
	sf := sender.sent[0]
	if sf.Frame.Header.Type != wire.Request {
		t.Fatalf("expected a REQUEST frame, got %v", sf.Frame.Header.Type)
	}
	if sf.Frame.Request.RequestedType != 3 || sf.Frame.Request.TxID != 42 {
		t.Fatalf("unexpected request body: %+v", sf.Frame.Request)
	}
}
