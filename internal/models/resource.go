package models

import (
	"bytes"
	"encoding/xml"
)

type resourceChannel struct {
	XMLName xml.Name     `xml:"channel"`
	Title   string       `xml:"title"`
	Item    resourceItem `xml:"item"`
}

type resourceItem struct {
	Title  string         `xml:"title"`
	GUID   string         `xml:"guid"`
	Rating resourceRating `xml:"media:rating"`
}

type resourceRating struct {
	Scheme string `xml:"scheme,attr"`
	Value  string `xml:",chardata"`
}

// NewResource builds the MRSS resource fragment the broker expects for a
// single video asset.
func NewResource(providerID, title, guid, rating string) (string, error) {
	ch := resourceChannel{
		Title: providerID,
		Item: resourceItem{
			Title:  title,
			GUID:   guid,
			Rating: resourceRating{Scheme: "urn:v-chip", Value: rating},
		},
	}
	var buf bytes.Buffer
	buf.WriteString(`<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">`)
	if err := xml.NewEncoder(&buf).Encode(ch); err != nil {
		return "", err
	}
	buf.WriteString(`</rss>`)
	return buf.String(), nil
}
