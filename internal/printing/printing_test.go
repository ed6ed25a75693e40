package printing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type doc string

func (d doc) PrintableRef() string { return string(d) }

func TestPrinter_FormLink(t *testing.T) {
	p := New("https://my.carrier.example/orders", "KEY")

	link, err := p.FormLink(doc("20450000000001"), FormDocument)
	require.NoError(t, err)
	require.Equal(t, "https://my.carrier.example/orders/printDocument/orders_print/20450000000001/apiKey/KEY", link)

	link, err = p.FormLink(doc("20450000000001"), FormMarkingsA4)
	require.NoError(t, err)
	require.Contains(t, link, "printMarkings/orders_print/type/pdf8")
}

func TestPrinter_FormLink_Errors(t *testing.T) {
	p := New("https://my.carrier.example/orders", "KEY")

	_, err := p.FormLink(doc(""), FormDocument)
	require.Error(t, err)

	_, err = p.FormLink(doc("X"), Form("poster"))
	require.Error(t, err)
}
