package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// FromWatermill converts Watermill message metadata into opaque data.
func FromWatermill(md message.Metadata) Metadata {
	return Metadata(md).Clone()
}

// ToWatermill converts opaque data into Watermill message metadata, used as
// transport attributes by the watermill-backed publishers.
func ToWatermill(md Metadata) message.Metadata {
	return message.Metadata(md.Clone())
}
