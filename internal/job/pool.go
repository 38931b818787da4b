package job

import (
	"context"
	"fmt"
	"sync"

	"github.com/asrlabs/asr-gateway/internal/observability"
)

// DevicePool caps concurrent engine invocations per device so a shared
// recognizer resource is never oversubscribed. A saturated pool queues
// acquirers until a slot frees or their context ends.
type DevicePool struct {
	slots map[string]chan struct{}
}

// NewDevicePool builds a pool with the given slot count per device key.
func NewDevicePool(sizes map[string]int) *DevicePool {
	slots := make(map[string]chan struct{}, len(sizes))
	for device, n := range sizes {
		if n < 1 {
			n = 1
		}
		slots[device] = make(chan struct{}, n)
	}
	return &DevicePool{slots: slots}
}

// Acquire takes a slot for the device, blocking with backpressure. The
// returned release function is idempotent.
func (p *DevicePool) Acquire(ctx context.Context, device string) (func(), error) {
	sem, ok := p.slots[device]
	if !ok {
		return nil, fmt.Errorf("no worker pool for device %q", device)
	}

	observability.RecordPoolWait(device, 1)
	defer observability.RecordPoolWait(device, -1)

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	observability.RecordPoolSlot(device, 1)
	var once sync.Once
	release := func() {
		once.Do(func() {
			<-sem
			observability.RecordPoolSlot(device, -1)
		})
	}
	return release, nil
}

// InUse reports how many slots are currently held for a device.
func (p *DevicePool) InUse(device string) int {
	if sem, ok := p.slots[device]; ok {
		return len(sem)
	}
	return 0
}
