// Package sdp implements the bidirectional mapping between NMOS IS-05
// transport parameters and SDP session descriptions (RFC 4566), covering
// ST 2110-20 (video/raw), ST 2110-30 (audio/L<n>), ST 2110-40
// (video/smpte291) and ST 2110-22 (video/jxsv) format-specific parameters.
//
// There is no third-party SDP library in the wider ecosystem with
// ST 2110 format-parameter support, so parsing walks the text with
// bufio.Scanner rather than building on a generic SDP package; see
// DESIGN.md for the standard-library justification.
package sdp

// Format names a media format, matching the IS-04 flow "format" values
// this package understands.
type Format string

const (
	FormatVideo Format = "video"
	FormatAudio Format = "audio"
	FormatData  Format = "data"
)

// Origin is the o= line (RFC 4566 section 5.2).
type Origin struct {
	UserName       string
	SessionID      string
	SessionVersion string
	UnicastAddress string
	AddressIsIPv6  bool
}

// Timing is the single t= line this package emits and expects.
type Timing struct {
	StartTime string
	StopTime  string
}

// Group is the session-level a=group: RFC 5888 grouping-framework line.
type Group struct {
	Semantics      string
	MediaStreamIDs []string
}

// TsRefclk is the a=ts-refclk: line (RFC 7273).
type TsRefclk struct {
	ClockSource string // "ptp" or "localmac"
	PTPVersion  string // e.g. "IEEE1588-2008", empty for localmac
	PTPServer   string // gmid[:domain], or "traceable"
}

// MediaClock is the a=mediaclk: line (RFC 7273 section 5).
type MediaClock struct {
	ClockSource     string // "direct" or "sender"
	ClockParameters string
}

// RTPMap is the a=rtpmap: line (RFC 4566 section 6).
type RTPMap struct {
	PayloadType        int
	EncodingName       string
	ClockRate          int
	EncodingParameters string // audio channel count, as a string; empty otherwise
}

// Rational is an integer-or-ratio value such as exactframerate or a pixel
// aspect ratio, encoded with the smallest numerator that exactly
// represents the value (ST 2110-20 sections 7.2 and 7.3).
type Rational struct {
	Numerator   uint64
	Denominator uint64 // 0 means "not yet set"; Emit treats 1 the same as omitted
}

// VideoFormat holds the ST 2110-20 "video/raw" fmtp parameters.
type VideoFormat struct {
	Width           uint32
	Height          uint32
	ExactFramerate  Rational
	Interlace       bool
	Segmented       bool
	Sampling        string
	Depth           uint32
	TCS             string // optional, e.g. "SDR", "PQ"
	Colorimetry     string
	Range           string // optional, e.g. "NARROW", "FULL"
	PAR             *Rational
	PacketizingMode string // "PM", e.g. "2110GPM" or "2110BPM"
	SSN             string // SMPTE Standard Number, e.g. "ST2110-20:2017"
	TP              string // sender type, e.g. "2110TPN", "2110TPNL"
	MaxUDP          uint32 // optional
}

// AudioFormat holds the ST 2110-30 "audio/L<n>" fmtp parameters plus the
// rtpmap/ptime fields the format also fixes.
type AudioFormat struct {
	BitDepth     uint32 // from the "L<n>" encoding name
	SampleRate   int
	ChannelCount uint32
	ChannelOrder string
	PacketTime   float64
}

// DataFormat holds the ST 2110-40 "video/smpte291" fmtp parameters.
type DataFormat struct {
	DIDSDIDs       []string
	VPIDCode       uint32
	ExactFramerate Rational
	TransmitModel  string // "tm", e.g. "pgram" or "interlace"
	SSN            string
	TP             string
}

// JXSVFormat holds the ST 2110-22 "video/jxsv" fmtp parameters
// (BCP-006-01). Width/Height/ExactFramerate/Interlace/Sampling/Depth/
// Colorimetry/TCS/Range/TP mirror VideoFormat; bit-rate is carried by the
// session-level b=AS line rather than an fmtp parameter.
type JXSVFormat struct {
	Width          uint32
	Height         uint32
	ExactFramerate Rational
	Interlace      bool
	Sampling       string
	Depth          uint32
	TCS            string
	Colorimetry    string
	Range          string
	TP             string
	SSN            string
	// MaxBitRateKbps becomes the session-level b=AS:<kbps> line.
	MaxBitRateKbps uint32
}

// ST2110-22:2019 is the only SSN value this package emits for JXSV; it is
// not configurable since BCP-006-01 fixes it.
const jxsvSSN = "ST2110-22:2019"

// Parameters is the format-agnostic description of a sender/receiver's
// SDP, combining the session-level fields with exactly one format-specific
// parameter set (selected by Format).
type Parameters struct {
	Origin        Origin
	SessionName   string
	Timing        Timing
	ConnectionTTL uint32 // IPv4 multicast hop count; 0 means "not set"
	Group         Group
	TsRefclk      TsRefclk
	MediaClock    MediaClock
	RTPMap        RTPMap
	MediaType     Format
	EncodingName  string // drives format dispatch: "raw", "L24" etc, "smpte291", "jxsv"

	Video *VideoFormat
	Audio *AudioFormat
	Data  *DataFormat
	JXSV  *JXSVFormat
}

// TransportParams is one IS-05 transport-parameters leg (one of a
// sender/receiver's "rtp" legs; two for ST 2022-7 redundancy).
type TransportParams struct {
	RTPEnabled      bool
	SourceIP        string
	DestinationIP   string // multicast group, or the unicast peer address
	MulticastIP     string // set when DestinationIP is multicast; empty for unicast
	InterfaceIP     string // "auto" when MulticastIP is set, else the unicast source interface
	DestinationPort int
}
