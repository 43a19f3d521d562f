package gateway_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mnemohq/mnemo/pkg/gateway"
)

var _ = Describe("BaseMode", func() {
	It("derives the mode from the capability flags", func() {
		Expect(gateway.BaseMode(true, true)).To(Equal(gateway.ModeReadWrite))
		Expect(gateway.BaseMode(true, false)).To(Equal(gateway.ModeWriteOnly))
		Expect(gateway.BaseMode(false, false)).To(Equal(gateway.ModeOff))
	})

	It("collapses reads-without-writes to off", func() {
		Expect(gateway.BaseMode(false, true)).To(Equal(gateway.ModeOff))
	})
})

var _ = Describe("ForcedRecord", func() {
	It("is active strictly before its deadline", func() {
		now := time.Now()
		record := &gateway.ForcedRecord{
			Reason:   gateway.ReasonManual,
			ForcedAt: now,
			Until:    now.Add(time.Second),
		}

		Expect(record.Active(now)).To(BeTrue())
		Expect(record.Active(now.Add(time.Second))).To(BeFalse())
		Expect(record.Active(now.Add(2 * time.Second))).To(BeFalse())
	})

	It("treats a nil record as inactive", func() {
		var record *gateway.ForcedRecord
		Expect(record.Active(time.Now())).To(BeFalse())
	})
})
