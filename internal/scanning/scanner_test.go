package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Static", func() {
	It("returns the fixed extraction for any document", func() {
		s := NewStatic()
		data, err := s.ScanReceipt([]byte("%PDF-1.4"), "application/pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(data.MerchantName).To(Equal("Dummy Store"))
		Expect(data.TotalAmount).To(Equal(100.00))
		Expect(data.PurchasedAt.Format("2006-01-02T15:04:05Z07:00")).To(Equal("2025-06-27T15:04:05Z"))
		Expect(s.Close()).To(Succeed())
	})

	It("returns a copy each time", func() {
		s := NewStatic()
		first, _ := s.ScanReceipt(nil, "")
		first.MerchantName = "changed"
		second, _ := s.ScanReceipt(nil, "")
		Expect(second.MerchantName).To(Equal("Dummy Store"))
	})
})

var _ = Describe("prepareImageData", func() {
	It("passes PNG data through", func() {
		out, err := prepareImageData([]byte("png-bytes"), "Image/PNG")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([]byte("png-bytes")))
	})

	It("rejects unsupported content types", func() {
		_, err := prepareImageData([]byte("text"), "text/plain")
		Expect(err).To(MatchError(ContainSubstring("unsupported content type")))
	})

	It("reports PDFs that cannot be opened", func() {
		_, err := prepareImageData([]byte("not a pdf"), "application/pdf; charset=binary")
		Expect(err).To(MatchError(ContainSubstring("converting PDF to image")))
	})

	It("refuses to build a Gemini scanner without a key", func() {
		_, err := NewGemini("", "")
		Expect(err).To(HaveOccurred())
	})
})
