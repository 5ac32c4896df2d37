package sdp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func unicastVideoParams() (Parameters, []TransportParams) {
	params := Parameters{
		Origin:      Origin{UserName: "-", SessionID: "1", SessionVersion: "1", UnicastAddress: "192.168.1.1"},
		SessionName: "video-sender",
		Timing:      Timing{StartTime: "0", StopTime: "0"},
		Group:       Group{Semantics: "DUP", MediaStreamIDs: []string{"leg0"}},
		TsRefclk:    TsRefclk{ClockSource: "ptp", PTPVersion: "IEEE1588-2008", PTPServer: "00-11-22-FF-FE-33-44-55:0"},
		MediaClock:  MediaClock{ClockSource: "direct"},
		RTPMap:      RTPMap{PayloadType: 96, EncodingName: "raw", ClockRate: 90000},
		MediaType:   FormatVideo,
		Video: &VideoFormat{
			Width: 1920, Height: 1080,
			ExactFramerate: Rational{Numerator: 25, Denominator: 1},
			Sampling:       "YCbCr-4:2:2",
			Depth:          10,
			Colorimetry:    "BT709",
			TP:             "2110TPN",
		},
	}
	transport := []TransportParams{
		{SourceIP: "192.168.1.10", DestinationIP: "192.168.1.1", DestinationPort: 5004},
	}
	return params, transport
}

func TestEmitParseUnicastVideoRoundTrips(t *testing.T) {
	params, transport := unicastVideoParams()

	text, err := Emit(params, transport)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(text, "v=0\r\n"))
	require.Contains(t, text, "m=video 5004 RTP/AVP 96\r\n")
	require.NotContains(t, text, "source-filter")

	gotParams, gotTransport, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, FormatVideo, gotParams.MediaType)
	require.NotNil(t, gotParams.Video)
	require.Equal(t, uint32(1920), gotParams.Video.Width)
	require.Equal(t, uint32(1080), gotParams.Video.Height)
	require.Equal(t, Rational{Numerator: 25, Denominator: 1}, gotParams.Video.ExactFramerate)
	require.Equal(t, "YCbCr-4:2:2", gotParams.Video.Sampling)
	require.Equal(t, "BT709", gotParams.Video.Colorimetry)
	require.Equal(t, "2110TPN", gotParams.Video.TP)

	require.Len(t, gotTransport, 1)
	require.True(t, gotTransport[0].RTPEnabled)
	require.Equal(t, 5004, gotTransport[0].DestinationPort)
	require.Equal(t, "192.168.1.10", gotTransport[0].SourceIP)
	require.Empty(t, gotTransport[0].MulticastIP)
}

func TestEmitParseAudioRoundTripsWithChannelOrder(t *testing.T) {
	params := Parameters{
		Origin:      Origin{UserName: "-", SessionID: "2", SessionVersion: "1", UnicastAddress: "192.168.1.1"},
		SessionName: "audio-sender",
		Timing:      Timing{StartTime: "0", StopTime: "0"},
		Group:       Group{MediaStreamIDs: []string{"leg0"}},
		TsRefclk:    TsRefclk{ClockSource: "ptp", PTPServer: "traceable"},
		MediaClock:  MediaClock{ClockSource: "direct"},
		RTPMap:      RTPMap{PayloadType: 97, EncodingName: "L24", ClockRate: 48000},
		MediaType:   FormatAudio,
		Audio: &AudioFormat{
			ChannelCount: 2,
			ChannelOrder: "SMPTE2110.(ST)",
			PacketTime:   1,
		},
	}
	transport := []TransportParams{
		{SourceIP: "192.168.1.20", DestinationIP: "192.168.1.1", DestinationPort: 6004},
	}

	text, err := Emit(params, transport)
	require.NoError(t, err)
	require.Contains(t, text, "a=rtpmap:97 L24/48000/2\r\n")
	require.Contains(t, text, "a=ptime:1\r\n")

	gotParams, gotTransport, err := Parse(text)
	require.NoError(t, err)
	require.NotNil(t, gotParams.Audio)
	require.Equal(t, uint32(24), gotParams.Audio.BitDepth)
	require.Equal(t, uint32(2), gotParams.Audio.ChannelCount)
	require.Equal(t, "SMPTE2110.(ST)", gotParams.Audio.ChannelOrder)
	require.Equal(t, 48000, gotParams.Audio.SampleRate)
	require.Len(t, gotTransport, 1)
	require.True(t, gotTransport[0].RTPEnabled)
}

// Multicast ST 2022-7 redundancy: two legs sharing a destination group but
// carrying distinct source addresses, recovered via a=source-filter.
func TestEmitParseMulticastTwoLegRedundancyRoundTrips(t *testing.T) {
	params, _ := unicastVideoParams()
	params.Group.MediaStreamIDs = []string{"leg0", "leg1"}
	params.ConnectionTTL = 64

	transport := []TransportParams{
		{SourceIP: "192.168.1.10", DestinationIP: "239.1.1.1", DestinationPort: 5004},
		{SourceIP: "192.168.2.10", DestinationIP: "239.1.1.1", DestinationPort: 5004},
	}

	text, err := Emit(params, transport)
	require.NoError(t, err)
	require.Contains(t, text, "a=group:DUP leg0 leg1\r\n")
	require.Equal(t, 2, strings.Count(text, "a=source-filter: incl IN IP4 239.1.1.1"))
	require.Contains(t, text, "a=mid:leg0\r\n")
	require.Contains(t, text, "a=mid:leg1\r\n")
	require.Contains(t, text, "c=IN IP4 239.1.1.1/64\r\n")

	gotParams, gotTransport, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, []string{"leg0", "leg1"}, gotParams.Group.MediaStreamIDs)
	require.Len(t, gotTransport, 2)
	require.True(t, gotTransport[0].RTPEnabled)
	require.True(t, gotTransport[1].RTPEnabled)
	require.Equal(t, "192.168.1.10", gotTransport[0].SourceIP)
	require.Equal(t, "192.168.2.10", gotTransport[1].SourceIP)
	require.Equal(t, "239.1.1.1", gotTransport[0].MulticastIP)
	require.Equal(t, "auto", gotTransport[0].InterfaceIP)
}

func TestEmitJXSVIncludesBandwidthLineAndFixedSSN(t *testing.T) {
	params := Parameters{
		Origin:      Origin{UserName: "-", SessionID: "3", SessionVersion: "1", UnicastAddress: "192.168.1.1"},
		SessionName: "jxsv-sender",
		Timing:      Timing{StartTime: "0", StopTime: "0"},
		Group:       Group{MediaStreamIDs: []string{"leg0"}},
		TsRefclk:    TsRefclk{ClockSource: "ptp", PTPServer: "traceable"},
		MediaClock:  MediaClock{ClockSource: "direct"},
		RTPMap:      RTPMap{PayloadType: 98, EncodingName: "jxsv", ClockRate: 90000},
		MediaType:   FormatVideo,
		JXSV: &JXSVFormat{
			Width: 1920, Height: 1080,
			ExactFramerate: Rational{Numerator: 25, Denominator: 1},
			Sampling:       "YCbCr-4:2:2",
			Depth:          10,
			Colorimetry:    "BT709",
			TP:             "2110TPN",
			MaxBitRateKbps: 200000,
		},
	}
	transport := []TransportParams{{SourceIP: "192.168.1.10", DestinationIP: "192.168.1.1", DestinationPort: 5004}}

	text, err := Emit(params, transport)
	require.NoError(t, err)
	require.Contains(t, text, "b=AS:200000\r\n")
	require.Contains(t, text, "SSN="+jxsvSSN)

	gotParams, _, err := Parse(text)
	require.NoError(t, err)
	require.NotNil(t, gotParams.JXSV)
	require.Equal(t, jxsvSSN, gotParams.JXSV.SSN)
	require.Equal(t, uint32(1920), gotParams.JXSV.Width)
}

func TestParseRejectsMissingMediaDescriptions(t *testing.T) {
	_, _, err := Parse("v=0\r\no=- 1 1 IN IP4 10.0.0.1\r\ns=x\r\nt=0 0\r\n")
	require.ErrorContains(t, err, "missing media descriptions")
}
