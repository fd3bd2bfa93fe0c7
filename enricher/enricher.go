// Package enricher annotates flow messages with the country and the
// autonomous system of their addresses, from MaxMind GeoIP2/GeoLite2
// databases.
package enricher

import (
	"net"
	"net/netip"

	"github.com/netsampler/nfcollector/producer"
	"github.com/netsampler/nfcollector/utils/errwrap"

	"github.com/oschwald/geoip2-golang"
)

type Enricher struct {
	asn     *geoip2.Reader
	country *geoip2.Reader
}

// Open loads the databases whose path is not empty. With both paths empty
// the returned Enricher does nothing.
func Open(asnPath, countryPath string) (*Enricher, error) {
	e := &Enricher{}
	var err error
	if asnPath != "" {
		if e.asn, err = geoip2.Open(asnPath); err != nil {
			return nil, errwrap.WrapWith(err, asnPath)
		}
	}
	if countryPath != "" {
		if e.country, err = geoip2.Open(countryPath); err != nil {
			e.Close()
			return nil, errwrap.WrapWith(err, countryPath)
		}
	}
	return e, nil
}

func (e *Enricher) Enabled() bool {
	return e != nil && (e.asn != nil || e.country != nil)
}

func (e *Enricher) Close() error {
	if e == nil {
		return nil
	}
	var err error
	if e.asn != nil {
		err = e.asn.Close()
	}
	if e.country != nil {
		if cerr := e.country.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func mapAsn(db *geoip2.Reader, addr netip.Addr, dest *uint32) {
	if !addr.IsValid() || *dest != 0 {
		return
	}
	entry, err := db.ASN(net.IP(addr.Unmap().AsSlice()))
	if err != nil {
		return
	}
	*dest = uint32(entry.AutonomousSystemNumber)
}

func mapCountry(db *geoip2.Reader, addr netip.Addr, dest *string) {
	if !addr.IsValid() {
		return
	}
	entry, err := db.Country(net.IP(addr.Unmap().AsSlice()))
	if err != nil {
		return
	}
	*dest = entry.Country.IsoCode
}

// Enrich fills SrcCountry and DstCountry, and SrcAs and DstAs when the
// exporter left them at zero.
func (e *Enricher) Enrich(msg *producer.FlowMessage) {
	if e == nil {
		return
	}
	if e.asn != nil {
		mapAsn(e.asn, msg.SrcAddr, &msg.SrcAs)
		mapAsn(e.asn, msg.DstAddr, &msg.DstAs)
	}
	if e.country != nil {
		mapCountry(e.country, msg.SrcAddr, &msg.SrcCountry)
		mapCountry(e.country, msg.DstAddr, &msg.DstCountry)
	}
}
