package p4calc

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// LayerTypeP4calc identifies the P4calc layer to gopacket. Registering a
// layer type does not bind an Ethertype; frames are demultiplexed by the link.
var LayerTypeP4calc = gopacket.RegisterLayerType(1234, gopacket.LayerTypeMetadata{
	Name:    "P4calc",
	Decoder: gopacket.DecodeFunc(decodeP4calc),
})

// Layer adapts Header to gopacket's layer interfaces so it can be stacked on
// layers.Ethernet with gopacket.SerializeLayers or a DecodingLayerParser.
type Layer struct {
	layers.BaseLayer
	Header
}

func (l *Layer) LayerType() gopacket.LayerType { return LayerTypeP4calc }

func (l *Layer) CanDecode() gopacket.LayerClass { return LayerTypeP4calc }

func (l *Layer) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

// DecodeFromBytes implements gopacket.DecodingLayer.
func (l *Layer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	h, err := Decode(data)
	if err != nil {
		df.SetTruncated()
		return err
	}
	l.Header = h
	l.BaseLayer = layers.BaseLayer{Contents: data[:HeaderLen], Payload: data[HeaderLen:]}
	return nil
}

// SerializeTo implements gopacket.SerializableLayer.
func (l *Layer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(HeaderLen)
	if err != nil {
		return err
	}
	l.Header.put(bytes)
	return nil
}

func decodeP4calc(data []byte, p gopacket.PacketBuilder) error {
	l := &Layer{}
	if err := l.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(l)
	return p.NextDecoder(gopacket.LayerTypePayload)
}
