package protocol

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/irtery/afina/command"
	"github.com/irtery/afina/internal/util"
	"github.com/irtery/afina/testutil"
)

var _ = Describe("Parser", func() {
	var p *Parser

	BeforeEach(func() {
		p = NewParser(testPool)
	})

	It("recognizes a get header with no payload", func() {
		line := "get foo bar\r\n"
		ok, consumed, err := p.Parse([]byte(line), len(line))
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(consumed).To(Equal(len(line)))
		builder, argRemains := p.Build()
		Expect(argRemains).To(Equal(0))
		cmd := builder.Finish(nil)
		Expect(cmd).To(BeAssignableToTypeOf(&command.Get{}))
	})

	It("recognizes a set header and reports arg_remains including the trailing separator", func() {
		line := "set foo 3\r\n"
		ok, consumed, err := p.Parse([]byte(line), len(line))
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(consumed).To(Equal(len(line)))
		_, argRemains := p.Build()
		Expect(argRemains).To(Equal(3 + 2))
	})

	It("makes no progress on a header with no line terminator yet", func() {
		prefix := "set fo"
		ok, consumed, err := p.Parse([]byte(prefix), len(prefix))
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
		Expect(consumed).To(Equal(0))
	})

	It("succeeds once the rest of the same header later arrives", func() {
		full := "delete foo\r\n"
		ok, _, err := p.Parse([]byte(full), len("delete f"))
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())

		ok, _, err = p.Parse([]byte(full), len(full))
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
	})

	It("rejects an unknown command name", func() {
		line := "bogus foo\r\n"
		ok, _, err := p.Parse([]byte(line), len(line))
		Expect(ok).To(BeFalse())
		Expect(err).NotTo(BeNil())
		Expect(util.Unwrap(err)).To(Equal(ErrUnknownCommand))
	})

	It("rejects a store header missing the byte count", func() {
		line := "set foo\r\n"
		ok, _, err := p.Parse([]byte(line), len(line))
		Expect(ok).To(BeFalse())
		Expect(err).NotTo(BeNil())
	})

	It("rejects a key that contains whitespace-adjacent control characters", func() {
		line := "get \x7f\r\n"
		ok, _, err := p.Parse([]byte(line), len(line))
		Expect(ok).To(BeFalse())
		Expect(err).NotTo(BeNil())
	})

	It("resets so the same parser can recognize a second, different command", func() {
		first := "get a\r\n"
		ok, _, err := p.Parse([]byte(first), len(first))
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		p.Build()
		p.Reset()

		second := "delete b\r\n"
		ok, consumed, err := p.Parse([]byte(second), len(second))
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(consumed).To(Equal(len(second)))
		builder, _ := p.Build()
		Expect(builder.Finish(nil)).To(BeAssignableToTypeOf(&command.Delete{}))
	})

	It("recognizes the same header regardless of how it is chunked", func() {
		header := "set somekey 42\r\n"
		for trial := 0; trial < 30; trial++ {
			fresh := NewParser(testPool)
			split := testutil.Rand.Intn(len(header))
			ok1, consumed1, err1 := fresh.Parse([]byte(header)[:split], split)
			Expect(err1).To(BeNil())
			Expect(ok1).To(BeFalse())
			Expect(consumed1).To(Equal(0))

			ok2, consumed2, err2 := fresh.Parse([]byte(header), len(header))
			Expect(err2).To(BeNil())
			Expect(ok2).To(BeTrue())
			Expect(consumed2).To(Equal(len(header)))
			_, argRemains := fresh.Build()
			Expect(argRemains).To(Equal(42 + 2))
		}
	})
})
