package utils

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const CUSTOM_EPOCH int64 = 1514764800000

// machineHash folds the mac address and pid into three decimal digits.
func machineHash(mac string) string {
	var hash uint16 = 0
	macPid := mac + strconv.Itoa(os.Getpid())
	for i := 0; i < len(macPid); i++ {
		hash += uint16(macPid[i] << (i & 1) * 8)
	}
	hashStr := strconv.FormatUint(uint64(hash), 10)
	if len(hashStr) > 3 {
		hashStr = hashStr[:3]
	} else if len(hashStr) < 3 {
		hashStr = strings.Repeat("0", 3-len(hashStr)) + hashStr
	}
	return hashStr
}

func MachineID() string {
	interfaces, err := net.Interfaces()
	if err == nil {
		for _, i := range interfaces {
			if i.Flags&net.FlagUp != 0 && !bytes.Equal(i.HardwareAddr, nil) {
				// skip locally administered addresses
				if i.HardwareAddr[0]&2 == 2 {
					continue
				}
				return machineHash(i.HardwareAddr.String())
			}
		}
	}
	return "0"
}

// padHex renders v in hex, truncated or zero padded to width digits.
func padHex(v int64, width int) string {
	s := strconv.FormatInt(v, 16)
	if len(s) > width {
		return s[:width]
	}
	return strings.Repeat("0", width-len(s)) + s
}

func GenUniqueID(machineID string, timestamp int64, counter int64) (int64, error) {
	id, err := strconv.ParseUint(machineID+padHex(timestamp, 10)+padHex(counter, 3), 16, 64)
	if err != nil {
		return 0, err
	}
	return int64(id & 0x7FFFFFFFFFFFFFFF), nil
}

// RequestIDs hands out request ids that are unique per process and roughly
// ordered by time. They tag log lines and queue messages of one request.
type RequestIDs struct {
	machineID string
	now       func() time.Time
	mu        sync.Mutex
	timestamp int64
	counter   int64
}

func NewRequestIDs(machineID string) *RequestIDs {
	return &RequestIDs{machineID: machineID, now: time.Now, timestamp: -1}
}

func (r *RequestIDs) Next() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timestamp := r.now().UnixMilli() - CUSTOM_EPOCH
	if timestamp < r.timestamp {
		return 0, fmt.Errorf("timestamps are not incremental")
	}
	if timestamp == r.timestamp {
		r.counter++
	} else {
		r.timestamp = timestamp
		r.counter = 0
	}
	return GenUniqueID(r.machineID, timestamp, r.counter)
}
