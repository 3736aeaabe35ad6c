package cryptoutils

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
	hqgoerrors "github.com/hueristiq/hq-go-errors"
)

var attributeTypeOIDs = map[string]asn1.ObjectIdentifier{
	"CN":           {2, 5, 4, 3},
	"SERIALNUMBER": {2, 5, 4, 5},
	"C":            {2, 5, 4, 6},
	"L":            {2, 5, 4, 7},
	"ST":           {2, 5, 4, 8},
	"S":            {2, 5, 4, 8},
	"STREET":       {2, 5, 4, 9},
	"O":            {2, 5, 4, 10},
	"OU":           {2, 5, 4, 11},
	"T":            {2, 5, 4, 12},
	"TITLE":        {2, 5, 4, 12},
	"POSTALCODE":   {2, 5, 4, 17},
	"DC":           {0, 9, 2342, 19200300, 100, 1, 25},
	"UID":          {0, 9, 2342, 19200300, 100, 1, 1},
	"EMAILADDRESS": {1, 2, 840, 113549, 1, 9, 1},
	"E":            {1, 2, 840, 113549, 1, 9, 1},
}

// DistinguishedName is a parsed issuer name.
type DistinguishedName struct {
	// Name is the decoded form, used for display and comparison.
	Name pkix.Name
	// Raw is the DER encoded RDNSequence in the order given by the source string.
	Raw []byte
}

func (dn *DistinguishedName) String() string {
	return dn.Name.String()
}

// ParseDistinguishedName parses an RFC 4514 distinguished name such as
// "CN=KeyIssuer,O=NSU". Attribute types may be given by name or as dotted OIDs.
func ParseDistinguishedName(source string) (dn *DistinguishedName, err error) {
	var parsed *ldap.DN

	parsed, err = ldap.ParseDN(source)
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to parse distinguished name", hqgoerrors.WithField("dn", source))

		return
	}

	if len(parsed.RDNs) == 0 {
		err = hqgoerrors.New("distinguished name is empty", hqgoerrors.WithField("dn", source))

		return
	}

	// The string form lists the most specific RDN first, DER lists it last.
	sequence := make(pkix.RDNSequence, 0, len(parsed.RDNs))

	for i := len(parsed.RDNs) - 1; i >= 0; i-- {
		set := make([]pkix.AttributeTypeAndValue, 0, len(parsed.RDNs[i].Attributes))

		for _, attribute := range parsed.RDNs[i].Attributes {
			var oid asn1.ObjectIdentifier

			oid, err = attributeTypeOID(attribute.Type)
			if err != nil {
				err = hqgoerrors.Wrap(err, "unsupported attribute in distinguished name", hqgoerrors.WithField("dn", source))

				return
			}

			set = append(set, pkix.AttributeTypeAndValue{Type: oid, Value: attribute.Value})
		}

		sequence = append(sequence, set)
	}

	dn = &DistinguishedName{}

	dn.Raw, err = asn1.Marshal(sequence)
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to encode distinguished name", hqgoerrors.WithField("dn", source))

		return
	}

	dn.Name.FillFromRDNSequence(&sequence)

	return
}

func attributeTypeOID(attributeType string) (oid asn1.ObjectIdentifier, err error) {
	if known, ok := attributeTypeOIDs[strings.ToUpper(attributeType)]; ok {
		oid = known

		return
	}

	arcs := strings.Split(attributeType, ".")
	if len(arcs) < 2 {
		err = hqgoerrors.New("unknown attribute type", hqgoerrors.WithField("type", attributeType))

		return
	}

	for _, arc := range arcs {
		var value int

		value, err = strconv.Atoi(arc)
		if err != nil || value < 0 {
			err = hqgoerrors.New("unknown attribute type", hqgoerrors.WithField("type", attributeType))

			return
		}

		oid = append(oid, value)
	}

	return
}
