package alfred

import (
	"sync"
	"time"

	"github.com/danmuck/alfredd/internal/wire"
)

// TransactionTable reassembles multi-packet pushes keyed by (peer_mac,
// tx_id). Records are applied in arrival order rather than sorted by
// seqno -- an intentional choice, not an oversight.
type TransactionTable struct {
	mu   sync.Mutex
	txs  map[TxKey]*Transaction
	mode OpMode

	// applyRecord is called once per buffered record, in arrival order,
	// when a transaction completes.
	applyRecord func(rec wire.DatasetRecord, peerMAC MAC, now time.Time)
	// onFinish is the narrow callback into the local IPC layer; it fires
	// only for transactions created with a ClientSocket attached.
	onFinish func(tx *Transaction)
	metrics  *Metrics
}

// NewTransactionTable builds an empty table. applyRecord folds a completed
// transaction's records into the cache; onFinish notifies whatever local
// client is waiting on the transaction's result.
func NewTransactionTable(mode OpMode, applyRecord func(wire.DatasetRecord, MAC, time.Time), onFinish func(*Transaction), metrics *Metrics) *TransactionTable {
	return &TransactionTable{
		txs:         make(map[TxKey]*Transaction),
		mode:        mode,
		applyRecord: applyRecord,
		onFinish:    onFinish,
		metrics:     metrics,
	}
}

// RegisterClientRequest creates the transaction a local client is waiting
// on. Slaves create transactions this way at request time rather than on
// first push packet.
func (t *TransactionTable) RegisterClientRequest(peerMAC MAC, txID uint16, requestedType int, client ClientSocket, now time.Time) *Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := TxKey{PeerMAC: peerMAC, TxID: txID}
	tx := &Transaction{
		PeerMAC:       peerMAC,
		TxID:          txID,
		RequestedType: requestedType,
		ClientSocket:  client,
		LastRx:        now,
	}
	t.txs[key] = tx
	return tx
}

// OnPushData buffers one push-data packet once the caller (the dispatcher)
// has already resolved peerMAC. It returns true if
// the frame was accepted (buffered or deduplicated into an existing
// transaction), and the transaction if it completed as a result.
func (t *TransactionTable) OnPushData(peerMAC MAC, body wire.PushDataBody, now time.Time) (accepted bool, finished *Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := TxKey{PeerMAC: peerMAC, TxID: body.TxID}
	tx, ok := t.txs[key]
	if !ok {
		if t.mode != ModeMaster {
			// Slaves only track transactions they created at request time.
			return false, nil
		}
		tx = &Transaction{PeerMAC: peerMAC, TxID: body.TxID, RequestedType: NoFilter}
		t.txs[key] = tx
	}

	tx.LastRx = now

	for _, p := range tx.packets {
		if p.Seqno == body.Seqno {
			// Duplicate seqno: drop silently, transaction state unchanged.
			return true, nil
		}
	}

	recordsCopy := make([]wire.DatasetRecord, len(body.Records))
	copy(recordsCopy, body.Records)
	tx.packets = append(tx.packets, pushPacket{Seqno: body.Seqno, Records: recordsCopy})

	return true, t.tryFinishLocked(key, now)
}

// OnTxEnd records the sender's declared packet count for a transaction and
// attempts to finish it.
func (t *TransactionTable) OnTxEnd(peerMAC MAC, body wire.TxEndBody, now time.Time) (accepted bool, finished *Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := TxKey{PeerMAC: peerMAC, TxID: body.TxID}
	tx, ok := t.txs[key]
	if !ok {
		if t.mode != ModeMaster || body.Seqno == 0 {
			// A 0-packet txend for an unknown transaction is a no-op; on a
			// slave, any txend for an unknown transaction is dropped.
			return false, nil
		}
		tx = &Transaction{PeerMAC: peerMAC, TxID: body.TxID, RequestedType: NoFilter}
		t.txs[key] = tx
	}

	tx.ExpectedPacketCount = int(body.Seqno)
	tx.LastRx = now

	return true, t.tryFinishLocked(key, now)
}

// tryFinishLocked completes a transaction iff it has a non-zero expected
// count matching its buffered packet count. On completion every record is
// applied, in arrival order, and the transaction is removed. Must be
// called with t.mu held.
func (t *TransactionTable) tryFinishLocked(key TxKey, now time.Time) *Transaction {
	tx := t.txs[key]
	if tx == nil {
		return nil
	}
	if tx.ExpectedPacketCount == 0 || len(tx.packets) != tx.ExpectedPacketCount {
		return nil
	}

	for _, pkt := range tx.packets {
		for _, rec := range pkt.Records {
			if t.applyRecord != nil {
				t.applyRecord(rec, tx.PeerMAC, now)
			}
		}
	}
	delete(t.txs, key)

	role := "master"
	if t.mode == ModeSlave {
		role = "slave"
	}
	t.metrics.transactionFinished(role)

	if tx.ClientSocket != nil && t.onFinish != nil {
		t.onFinish(tx)
	}
	return tx
}

// Cancel frees a transaction early, e.g. because its owning client socket
// closed before completion.
func (t *TransactionTable) Cancel(peerMAC MAC, txID uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.txs, TxKey{PeerMAC: peerMAC, TxID: txID})
}

// Sweep reaps any transaction whose last received frame is older than ttl,
// freeing its buffered packets.
func (t *TransactionTable) Sweep(now time.Time, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, tx := range t.txs {
		if now.Sub(tx.LastRx) > ttl {
			delete(t.txs, key)
			t.metrics.transactionSwept()
		}
	}
}

// Len reports how many transactions are currently open.
func (t *TransactionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.txs)
}
