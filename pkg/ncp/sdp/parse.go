package sdp

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

type line struct {
	kind  byte // 'o', 's', 't', 'c', 'm', 'a', 'b', ...
	value string
}

type mediaDescription struct {
	mediaType   string
	protocol    string
	port        int
	payloadType int
	connection  string // connection-address, without /ttl
	attributes  []line // raw "a=" values for this media description
}

// sourceFilter is the parsed a=source-filter: attribute.
type sourceFilter struct {
	destinationAddress string
	sourceAddresses    []string
}

// Parse reads an RFC 4566 session description and returns the
// format-agnostic parameters plus one TransportParams leg per m= line
// (one for unicast/simple multicast, two for ST 2022-7 redundancy).
func Parse(sdpText string) (Parameters, []TransportParams, error) {
	var sessionConnection string
	var sessionAttrs []line
	var origin Origin
	var sessionName string
	var timing Timing
	var medias []mediaDescription
	var bandwidthAS uint32

	scanner := bufio.NewScanner(strings.NewReader(sdpText))
	var current *mediaDescription
	for scanner.Scan() {
		raw := strings.TrimRight(scanner.Text(), "\r")
		if len(raw) < 2 || raw[1] != '=' {
			continue
		}
		kind, value := raw[0], raw[2:]

		switch kind {
		case 'm':
			medias = append(medias, mediaDescription{})
			current = &medias[len(medias)-1]
			fields := strings.Fields(value)
			if len(fields) < 4 {
				return Parameters{}, nil, fmt.Errorf("malformed m= line: %q", raw)
			}
			current.mediaType = fields[0]
			port, err := strconv.Atoi(fields[1])
			if err != nil {
				return Parameters{}, nil, fmt.Errorf("malformed m= port: %w", err)
			}
			current.port = port
			current.protocol = fields[2]
			pt, err := strconv.Atoi(fields[3])
			if err != nil {
				return Parameters{}, nil, fmt.Errorf("malformed m= payload type: %w", err)
			}
			current.payloadType = pt
		case 'c':
			addr := connectionAddress(value)
			if current == nil {
				sessionConnection = addr
			} else {
				current.connection = addr
			}
		case 'a':
			if current == nil {
				sessionAttrs = append(sessionAttrs, line{kind: 'a', value: value})
			} else {
				current.attributes = append(current.attributes, line{kind: 'a', value: value})
			}
		case 'o':
			fields := strings.Fields(value)
			if len(fields) < 6 {
				return Parameters{}, nil, fmt.Errorf("malformed o= line: %q", raw)
			}
			origin = Origin{
				UserName:       fields[0],
				SessionID:      fields[1],
				SessionVersion: fields[2],
				UnicastAddress: fields[5],
				AddressIsIPv6:  fields[4] == "IP6",
			}
		case 's':
			sessionName = value
		case 't':
			fields := strings.Fields(value)
			if len(fields) == 2 {
				timing = Timing{StartTime: fields[0], StopTime: fields[1]}
			}
		case 'v':
			if value != "0" {
				return Parameters{}, nil, fmt.Errorf("unsupported protocol version %q", value)
			}
		case 'b':
			if current == nil && strings.HasPrefix(value, "AS:") {
				if kbps, err := strconv.ParseUint(strings.TrimPrefix(value, "AS:"), 10, 32); err == nil {
					bandwidthAS = uint32(kbps)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Parameters{}, nil, err
	}

	if len(medias) == 0 {
		return Parameters{}, nil, fmt.Errorf("missing media descriptions")
	}

	params, err := parametersFromMedia(origin, sessionName, timing, sessionAttrs, medias[0])
	if err != nil {
		return Parameters{}, nil, err
	}
	if params.JXSV != nil {
		params.JXSV.MaxBitRateKbps = bandwidthAS
	}

	if group := findAttr(sessionAttrs, "group"); group != "" {
		fields := strings.Fields(group)
		if len(fields) >= 1 {
			params.Group.Semantics = fields[0]
			params.Group.MediaStreamIDs = fields[1:]
		}
	}

	legs := 1
	if len(medias) == 2 {
		legs = 2
	}
	transportParams := transportParamsFromMedia(origin, sessionConnection, medias, legs)

	return params, transportParams, nil
}

func connectionAddress(value string) string {
	fields := strings.Fields(value)
	if len(fields) < 3 {
		return ""
	}
	addr := fields[2]
	if slash := strings.IndexByte(addr, '/'); slash >= 0 {
		addr = addr[:slash]
	}
	return addr
}

func findAttr(attrs []line, name string) string {
	prefix := name + ":"
	for _, a := range attrs {
		if a.value == name {
			return ""
		}
		if strings.HasPrefix(a.value, prefix) {
			return a.value[len(prefix):]
		}
	}
	return ""
}

func parametersFromMedia(origin Origin, sessionName string, timing Timing, sessionAttrs []line, md mediaDescription) (Parameters, error) {
	params := Parameters{
		Origin:      origin,
		SessionName: sessionName,
		Timing:      timing,
		MediaType:   Format(md.mediaType),
	}

	if tsrefclk := findAttr(md.attributes, "ts-refclk"); tsrefclk != "" {
		params.TsRefclk = parseTsRefclk(tsrefclk)
	}
	if mediaclk := findAttr(md.attributes, "mediaclk"); mediaclk != "" {
		source, parameters, _ := strings.Cut(mediaclk, "=")
		params.MediaClock = MediaClock{ClockSource: source, ClockParameters: parameters}
	}

	rtpmap := findAttr(md.attributes, "rtpmap")
	if rtpmap == "" {
		return Parameters{}, fmt.Errorf("missing attribute: rtpmap")
	}
	rm, err := parseRTPMap(rtpmap)
	if err != nil {
		return Parameters{}, err
	}
	params.RTPMap = rm
	params.EncodingName = rm.EncodingName

	fmtp := findAttr(md.attributes, "fmtp")
	isAudio := params.MediaType == FormatAudio
	isVideo := params.MediaType == FormatVideo && rm.EncodingName != "smpte291" && rm.EncodingName != "jxsv"
	isData := params.MediaType == FormatVideo && rm.EncodingName == "smpte291"
	isJXSV := params.MediaType == FormatVideo && rm.EncodingName == "jxsv"

	if isAudio {
		ptime := findAttr(md.attributes, "ptime")
		if ptime == "" {
			return Parameters{}, fmt.Errorf("missing attribute: ptime")
		}
		pt, err := strconv.ParseFloat(ptime, 64)
		if err != nil {
			return Parameters{}, fmt.Errorf("invalid ptime: %w", err)
		}
		bitDepth := uint32(0)
		if strings.HasPrefix(rm.EncodingName, "L") {
			if v, err := strconv.ParseUint(rm.EncodingName[1:], 10, 32); err == nil {
				bitDepth = uint32(v)
			}
		}
		channelCount := uint32(0)
		if rm.EncodingParameters != "" {
			if v, err := strconv.ParseUint(rm.EncodingParameters, 10, 32); err == nil {
				channelCount = uint32(v)
			}
		}
		if fmtp == "" {
			return Parameters{}, fmt.Errorf("missing attribute: fmtp")
		}
		_, fmtpValue, _ := strings.Cut(fmtp, " ")
		audio, err := parseAudioFmtp(fmtpValue)
		if err != nil {
			return Parameters{}, err
		}
		audio.BitDepth = bitDepth
		audio.SampleRate = rm.ClockRate
		audio.ChannelCount = channelCount
		audio.PacketTime = pt
		params.Audio = audio
	} else if isVideo {
		if fmtp == "" {
			return Parameters{}, fmt.Errorf("missing attribute: fmtp")
		}
		_, fmtpValue, _ := strings.Cut(fmtp, " ")
		video, err := parseVideoFmtp(fmtpValue)
		if err != nil {
			return Parameters{}, err
		}
		params.Video = video
	} else if isData {
		if fmtp == "" {
			return Parameters{}, fmt.Errorf("missing attribute: fmtp")
		}
		_, fmtpValue, _ := strings.Cut(fmtp, " ")
		data, err := parseDataFmtp(fmtpValue)
		if err != nil {
			return Parameters{}, err
		}
		params.Data = data
	} else if isJXSV {
		if fmtp == "" {
			return Parameters{}, fmt.Errorf("missing attribute: fmtp")
		}
		_, fmtpValue, _ := strings.Cut(fmtp, " ")
		jxsv, err := parseJXSVFmtp(fmtpValue)
		if err != nil {
			return Parameters{}, err
		}
		params.JXSV = jxsv
	}

	return params, nil
}

func parseTsRefclk(value string) TsRefclk {
	if strings.HasPrefix(value, "localmac=") {
		return TsRefclk{ClockSource: "localmac", PTPServer: strings.TrimPrefix(value, "localmac=")}
	}
	value = strings.TrimPrefix(value, "ptp=")
	version, server, found := strings.Cut(value, ":")
	if !found {
		return TsRefclk{ClockSource: "ptp", PTPServer: value}
	}
	return TsRefclk{ClockSource: "ptp", PTPVersion: version, PTPServer: server}
}

func parseRTPMap(value string) (RTPMap, error) {
	payloadStr, rest, found := strings.Cut(value, " ")
	if !found {
		return RTPMap{}, fmt.Errorf("malformed rtpmap: %q", value)
	}
	pt, err := strconv.Atoi(payloadStr)
	if err != nil {
		return RTPMap{}, fmt.Errorf("malformed rtpmap payload type: %w", err)
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 2 {
		return RTPMap{}, fmt.Errorf("malformed rtpmap encoding: %q", rest)
	}
	rm := RTPMap{PayloadType: pt, EncodingName: parts[0]}
	clockRate, err := strconv.Atoi(parts[1])
	if err != nil {
		return RTPMap{}, fmt.Errorf("malformed rtpmap clock rate: %w", err)
	}
	rm.ClockRate = clockRate
	if len(parts) == 3 {
		rm.EncodingParameters = parts[2]
	}
	return rm, nil
}

func parseSourceFilter(value string) (sourceFilter, bool) {
	// a=source-filter: incl IN <address-types> <dest-address> <src-list>
	fields := strings.Fields(value)
	if len(fields) < 5 {
		return sourceFilter{}, false
	}
	return sourceFilter{
		destinationAddress: fields[3],
		sourceAddresses:    fields[4:],
	}, true
}

// transportParamsFromMedia mirrors the source-filter leg-consumption
// algorithm: each successive leg claims the next unclaimed source address
// from the first source-filter with enough addresses left, falling
// through to later m= lines when the current one's filter is exhausted.
func transportParamsFromMedia(origin Origin, sessionConnection string, medias []mediaDescription, legs int) []TransportParams {
	out := make([]TransportParams, legs)

	for leg := 0; leg < legs; leg++ {
		tp := TransportParams{SourceIP: origin.UnicastAddress}
		if sessionConnection != "" {
			setMulticastInterfaceIP(&tp, sessionConnection)
		}

		sourceAddress := leg
		for _, md := range medias {
			if md.protocol != "RTP/AVP" {
				continue
			}
			if md.mediaType != "video" && md.mediaType != "audio" {
				continue
			}

			appliedFilter := false
			if sf, ok := findSourceFilterAttr(md.attributes); ok {
				if sourceAddress >= len(sf.sourceAddresses) {
					sourceAddress -= len(sf.sourceAddresses)
					continue
				}
				setMulticastInterfaceIP(&tp, sf.destinationAddress)
				tp.SourceIP = sf.sourceAddresses[sourceAddress]
				sourceAddress = 0
				appliedFilter = true
			}

			if sourceAddress != 0 {
				sourceAddress--
				continue
			}

			tp.DestinationPort = md.port
			if !appliedFilter && md.connection != "" {
				setMulticastInterfaceIP(&tp, md.connection)
			}
			tp.RTPEnabled = true
			break
		}

		out[leg] = tp
	}

	return out
}

func findSourceFilterAttr(attrs []line) (sourceFilter, bool) {
	value := findAttr(attrs, "source-filter")
	if value == "" {
		return sourceFilter{}, false
	}
	return parseSourceFilter(value)
}

func setMulticastInterfaceIP(tp *TransportParams, address string) {
	_, multicast := addressType(address)
	tp.DestinationIP = address
	if multicast {
		tp.MulticastIP = address
		tp.InterfaceIP = "auto"
	} else {
		tp.MulticastIP = ""
		tp.InterfaceIP = address
	}
}
