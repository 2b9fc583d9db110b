package relay

import (
	"context"
	"log"
	"time"

	"github.com/pmailnet/relaynode/pkg/dht"
	"github.com/pmailnet/relaynode/pkg/transport/udp"
)

// MaintenanceInterval bounds how often the maintenance loop below
// wakes up. The original's comment on its maintenance thread says it
// "should wake up no more than once every 10 seconds", though the
// loop shown has no actual sleep; this ticker makes that stated intent
// real instead of spinning as fast as the scheduler allows.
const MaintenanceInterval = 10 * time.Second

// RunMaintenanceLoop periodically asks table for its next maintenance
// action (a whoami or a greeting loop) and submits it on conn's
// low-priority queue, storing the resulting Box so a later response
// can be matched against it. It returns when ctx is canceled.
func RunMaintenanceLoop(ctx context.Context, table *dht.Table, conn *udp.Conn) {
	ticker := time.NewTicker(MaintenanceInterval)
	defer ticker.Stop()

	for {
		addr, box, err := table.Maintenance()
		if err != nil {
			log.Printf("relay: maintenance skipped: %v", err)
		} else {
			table.StoreOutstanding(box)
			conn.SendLowPriority(udp.RawEncryptedMessage{Addr: addr, Data: box.Packet()})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
