package webrtc

import (
	"time"

	"github.com/pion/rtcp"
)

// LinkQuality summarizes RTCP feedback from one receiver.
type LinkQuality struct {
	PacketLoss  float64 // 0..1
	Jitter      time.Duration
	// ReportDelay is the receiver's DLSR, its hold time before reporting.
	ReportDelay time.Duration
	NACKs       int
	PLIs        int
	Reports     int
}

// QualityRecorder receives link quality samples for a channel.
type QualityRecorder interface {
	RecordLinkQuality(role string, q LinkQuality)
}

// summarizeRTCP folds a batch of RTCP packets into one sample.
// clockRate converts jitter from RTP timestamp units.
func summarizeRTCP(packets []rtcp.Packet, clockRate uint32) LinkQuality {
	var (
		q          LinkQuality
		lossSum    float64
		jitterSum  uint64
		delaySum   time.Duration
		delayCount int
	)

	for _, packet := range packets {
		switch p := packet.(type) {
		case *rtcp.ReceiverReport:
			for _, report := range p.Reports {
				lossSum += float64(report.FractionLost) / 256.0
				jitterSum += uint64(report.Jitter)
				q.Reports++
				if report.LastSenderReport != 0 && report.Delay != 0 {
					// DLSR is in 1/65536 s
					delaySum += time.Duration(report.Delay) * time.Second / 65536
					delayCount++
				}
			}
		case *rtcp.TransportLayerNack:
			for _, pair := range p.Nacks {
				q.NACKs += len(pair.PacketList())
			}
		case *rtcp.PictureLossIndication:
			q.PLIs++
		}
	}

	if q.Reports > 0 {
		q.PacketLoss = lossSum / float64(q.Reports)
		if clockRate > 0 {
			avg := float64(jitterSum) / float64(q.Reports)
			q.Jitter = time.Duration(avg / float64(clockRate) * float64(time.Second))
		}
	}
	if delayCount > 0 {
		q.ReportDelay = delaySum / time.Duration(delayCount)
	}
	return q
}
