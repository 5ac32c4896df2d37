package sdp

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// addressType reports the RFC 4566 address-type token ("IP4"/"IP6") and
// whether address is a multicast address.
func addressType(address string) (string, bool) {
	ip := net.ParseIP(address)
	if ip == nil {
		return "IP4", false
	}
	if ip.To4() == nil {
		return "IP6", ip.IsMulticast()
	}
	return "IP4", ip.IsMulticast()
}

// Emit renders params and one TransportParams leg per entry in
// params.Group.MediaStreamIDs order into an RFC 4566 session description.
// transportParams must have no more legs than params.Group.MediaStreamIDs.
func Emit(params Parameters, transportParams []TransportParams) (string, error) {
	if len(transportParams) > len(params.Group.MediaStreamIDs) {
		return "", fmt.Errorf("not enough media stream ids (%d) for transport params (%d)", len(params.Group.MediaStreamIDs), len(transportParams))
	}
	if len(transportParams) == 0 {
		return "", fmt.Errorf("no transport params to emit")
	}

	addrType, multicast := addressType(transportParams[0].DestinationIP)

	var b strings.Builder
	fmt.Fprintf(&b, "v=0\r\n")
	fmt.Fprintf(&b, "o=%s %s %s IN %s %s\r\n",
		orDash(params.Origin.UserName), orDash(params.Origin.SessionID), orDash(params.Origin.SessionVersion),
		addrType, transportParams[0].SourceIP)
	fmt.Fprintf(&b, "s=%s\r\n", orDash(params.SessionName))
	fmt.Fprintf(&b, "t=%s %s\r\n", orZero(params.Timing.StartTime), orZero(params.Timing.StopTime))

	if bw := bandwidthLine(params); bw != "" {
		b.WriteString(bw)
	}

	if len(transportParams) > 1 {
		mids := params.Group.MediaStreamIDs[:len(transportParams)]
		semantics := params.Group.Semantics
		if semantics == "" {
			semantics = "DUP"
		}
		fmt.Fprintf(&b, "a=group:%s %s\r\n", semantics, strings.Join(mids, " "))
	}

	for idx, tp := range transportParams {
		connectionAddress := tp.SourceIP
		if multicast {
			connectionAddress = tp.DestinationIP
		}

		fmt.Fprintf(&b, "m=%s %d RTP/AVP %d\r\n", params.MediaType, tp.DestinationPort, params.RTPMap.PayloadType)

		connLine := connectionAddress
		if addrType == "IP4" && multicast {
			ttl := params.ConnectionTTL
			if ttl == 0 {
				ttl = 32
			}
			connLine = fmt.Sprintf("%s/%d", connectionAddress, ttl)
		}
		fmt.Fprintf(&b, "c=IN %s %s\r\n", addrType, connLine)

		fmt.Fprintf(&b, "a=ts-refclk:%s\r\n", formatTsRefclk(params.TsRefclk))
		fmt.Fprintf(&b, "a=mediaclk:%s=%s\r\n", params.MediaClock.ClockSource, params.MediaClock.ClockParameters)

		if multicast {
			fmt.Fprintf(&b, "a=source-filter: incl IN %s %s %s\r\n", addrType, tp.DestinationIP, tp.SourceIP)
		}

		if params.MediaType == FormatAudio && params.Audio != nil {
			fmt.Fprintf(&b, "a=ptime:%s\r\n", formatPacketTime(params.Audio.PacketTime))
		}

		fmt.Fprintf(&b, "a=rtpmap:%s\r\n", formatRTPMap(params))

		if fmtp := formatFmtp(params); fmtp != "" {
			fmt.Fprintf(&b, "a=fmtp:%d %s\r\n", params.RTPMap.PayloadType, fmtp)
		}

		if len(transportParams) > 1 && idx < len(params.Group.MediaStreamIDs) {
			fmt.Fprintf(&b, "a=mid:%s\r\n", params.Group.MediaStreamIDs[idx])
		}
	}

	return b.String(), nil
}

func bandwidthLine(params Parameters) string {
	if params.JXSV == nil || params.JXSV.MaxBitRateKbps == 0 {
		return ""
	}
	return fmt.Sprintf("b=AS:%d\r\n", params.JXSV.MaxBitRateKbps)
}

func formatTsRefclk(c TsRefclk) string {
	if c.ClockSource == "localmac" {
		return "localmac=" + c.PTPServer
	}
	server := c.PTPServer
	if server == "" {
		server = "traceable"
	}
	if c.PTPVersion == "" {
		return fmt.Sprintf("ptp=%s", server)
	}
	return fmt.Sprintf("ptp=%s:%s", c.PTPVersion, server)
}

func formatPacketTime(pt float64) string {
	s := strconv.FormatFloat(pt, 'f', -1, 64)
	return s
}

func formatRTPMap(params Parameters) string {
	if params.MediaType == FormatAudio && params.Audio != nil {
		return fmt.Sprintf("%d %s/%d/%d", params.RTPMap.PayloadType, params.RTPMap.EncodingName, params.RTPMap.ClockRate, params.Audio.ChannelCount)
	}
	return fmt.Sprintf("%d %s/%d", params.RTPMap.PayloadType, params.RTPMap.EncodingName, params.RTPMap.ClockRate)
}

func formatFmtp(params Parameters) string {
	switch {
	case params.Video != nil:
		return buildVideoFmtp(params.Video)
	case params.Audio != nil:
		return buildAudioFmtp(params.Audio)
	case params.Data != nil:
		return buildDataFmtp(params.Data)
	case params.JXSV != nil:
		return buildJXSVFmtp(params.JXSV)
	default:
		return ""
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
