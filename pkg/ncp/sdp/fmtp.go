package sdp

import (
	"fmt"
	"strconv"
	"strings"
)

// fmtpParam is one "name=value" (or bare "name") format-specific parameter,
// order preserved the way RFC 4566 section 6 and VSF TR-05 recommend.
type fmtpParam struct {
	name  string
	value string // empty for a bare flag like "interlace", which has flag=true
	flag  bool
}

func kv(name, value string) fmtpParam { return fmtpParam{name: name, value: value} }
func flag(name string) fmtpParam      { return fmtpParam{name: name, flag: true} }

func renderFmtpParams(params []fmtpParam) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.flag {
			parts = append(parts, p.name)
			continue
		}
		parts = append(parts, p.name+"="+p.value)
	}
	return strings.Join(parts, ";")
}

func parseFmtpParams(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found {
			out[strings.TrimSpace(name)] = ""
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out
}

// buildVideoFmtp follows VSF TR-05:2017's recommended parameter order for
// ST 2110-20.
func buildVideoFmtp(v *VideoFormat) string {
	params := []fmtpParam{
		kv("width", strconv.FormatUint(uint64(v.Width), 10)),
		kv("height", strconv.FormatUint(uint64(v.Height), 10)),
		kv("exactframerate", formatRational(v.ExactFramerate)),
	}
	if v.Interlace {
		params = append(params, flag("interlace"))
	}
	if v.Segmented {
		params = append(params, flag("segmented"))
	}
	params = append(params, kv("sampling", v.Sampling))
	params = append(params, kv("depth", strconv.FormatUint(uint64(v.Depth), 10)))
	params = append(params, kv("colorimetry", v.Colorimetry))
	if v.TCS != "" {
		params = append(params, kv("TCS", v.TCS))
	}
	if v.Range != "" {
		params = append(params, kv("RANGE", v.Range))
	}
	if v.PAR != nil {
		params = append(params, kv("PAR", fmt.Sprintf("%d:%d", v.PAR.Numerator, v.PAR.Denominator)))
	}
	pm := v.PacketizingMode
	if pm == "" {
		pm = "2110GPM"
	}
	params = append(params, kv("PM", pm))
	ssn := v.SSN
	if ssn == "" {
		ssn = "ST2110-20:2017"
	}
	params = append(params, kv("SSN", ssn))
	params = append(params, kv("TP", v.TP))
	if v.MaxUDP != 0 {
		params = append(params, kv("MAXUDP", strconv.FormatUint(uint64(v.MaxUDP), 10)))
	}
	return renderFmtpParams(params)
}

func parseVideoFmtp(raw string) (*VideoFormat, error) {
	m := parseFmtpParams(raw)
	v := &VideoFormat{}

	width, ok := m["width"]
	if !ok {
		return nil, fmt.Errorf("missing format parameter: width")
	}
	w, err := strconv.ParseUint(width, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid width: %w", err)
	}
	v.Width = uint32(w)

	height, ok := m["height"]
	if !ok {
		return nil, fmt.Errorf("missing format parameter: height")
	}
	h, err := strconv.ParseUint(height, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid height: %w", err)
	}
	v.Height = uint32(h)

	efr, ok := m["exactframerate"]
	if !ok {
		return nil, fmt.Errorf("missing format parameter: exactframerate")
	}
	rat, err := parseRational(efr)
	if err != nil {
		return nil, err
	}
	v.ExactFramerate = rat

	_, v.Interlace = m["interlace"]
	_, v.Segmented = m["segmented"]

	sampling, ok := m["sampling"]
	if !ok {
		return nil, fmt.Errorf("missing format parameter: sampling")
	}
	v.Sampling = sampling

	depth, ok := m["depth"]
	if !ok {
		return nil, fmt.Errorf("missing format parameter: depth")
	}
	d, err := strconv.ParseUint(depth, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid depth: %w", err)
	}
	v.Depth = uint32(d)

	v.TCS = m["TCS"]
	v.Range = m["RANGE"]

	if par, ok := m["PAR"]; ok {
		num, den, found := strings.Cut(par, ":")
		if found {
			n, errN := strconv.ParseUint(num, 10, 64)
			d, errD := strconv.ParseUint(den, 10, 64)
			if errN == nil && errD == nil {
				v.PAR = &Rational{Numerator: n, Denominator: d}
			}
		}
	}

	v.PacketizingMode = m["PM"]
	v.SSN = m["SSN"]

	colorimetry, ok := m["colorimetry"]
	if !ok {
		return nil, fmt.Errorf("missing format parameter: colorimetry")
	}
	v.Colorimetry = colorimetry

	tp, ok := m["TP"]
	if !ok {
		return nil, fmt.Errorf("missing format parameter: TP")
	}
	v.TP = tp

	if maxudp, ok := m["MAXUDP"]; ok {
		mu, err := strconv.ParseUint(maxudp, 10, 32)
		if err == nil {
			v.MaxUDP = uint32(mu)
		}
	}

	return v, nil
}

func buildAudioFmtp(a *AudioFormat) string {
	return renderFmtpParams([]fmtpParam{kv("channel-order", a.ChannelOrder)})
}

func parseAudioFmtp(raw string) (*AudioFormat, error) {
	m := parseFmtpParams(raw)
	order, ok := m["channel-order"]
	if !ok {
		return nil, fmt.Errorf("missing format parameter: channel-order")
	}
	return &AudioFormat{ChannelOrder: order}, nil
}

func buildDataFmtp(d *DataFormat) string {
	params := []fmtpParam{
		kv("DID_SDID", strings.Join(d.DIDSDIDs, ",")),
	}
	if d.VPIDCode != 0 {
		params = append(params, kv("VPID_Code", strconv.FormatUint(uint64(d.VPIDCode), 10)))
	}
	params = append(params,
		kv("exactframerate", formatRational(d.ExactFramerate)),
		kv("tm", d.TransmitModel),
		kv("SSN", d.SSN),
		kv("TP", d.TP),
	)
	return renderFmtpParams(params)
}

func parseDataFmtp(raw string) (*DataFormat, error) {
	m := parseFmtpParams(raw)
	d := &DataFormat{}
	if dids, ok := m["DID_SDID"]; ok && dids != "" {
		d.DIDSDIDs = strings.Split(dids, ",")
	}
	if vpid, ok := m["VPID_Code"]; ok {
		v, err := strconv.ParseUint(vpid, 10, 32)
		if err == nil {
			d.VPIDCode = uint32(v)
		}
	}
	if efr, ok := m["exactframerate"]; ok {
		rat, err := parseRational(efr)
		if err != nil {
			return nil, err
		}
		d.ExactFramerate = rat
	}
	d.TransmitModel = m["tm"]
	d.SSN = m["SSN"]
	d.TP = m["TP"]
	return d, nil
}

// buildJXSVFmtp follows BCP-006-01's video/jxsv fmtp parameter set; the
// SSN value is fixed (see jxsvSSN) and bit rate is carried by the
// session-level b=AS line instead.
func buildJXSVFmtp(j *JXSVFormat) string {
	params := []fmtpParam{
		kv("width", strconv.FormatUint(uint64(j.Width), 10)),
		kv("height", strconv.FormatUint(uint64(j.Height), 10)),
		kv("exactframerate", formatRational(j.ExactFramerate)),
	}
	if j.Interlace {
		params = append(params, flag("interlace"))
	}
	params = append(params, kv("sampling", j.Sampling))
	params = append(params, kv("depth", strconv.FormatUint(uint64(j.Depth), 10)))
	params = append(params, kv("colorimetry", j.Colorimetry))
	if j.TCS != "" {
		params = append(params, kv("TCS", j.TCS))
	}
	if j.Range != "" {
		params = append(params, kv("RANGE", j.Range))
	}
	params = append(params, kv("SSN", jxsvSSN))
	params = append(params, kv("TP", j.TP))
	return renderFmtpParams(params)
}

func parseJXSVFmtp(raw string) (*JXSVFormat, error) {
	m := parseFmtpParams(raw)
	j := &JXSVFormat{}

	width, ok := m["width"]
	if !ok {
		return nil, fmt.Errorf("missing format parameter: width")
	}
	w, err := strconv.ParseUint(width, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid width: %w", err)
	}
	j.Width = uint32(w)

	height, ok := m["height"]
	if !ok {
		return nil, fmt.Errorf("missing format parameter: height")
	}
	h, err := strconv.ParseUint(height, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid height: %w", err)
	}
	j.Height = uint32(h)

	efr, ok := m["exactframerate"]
	if !ok {
		return nil, fmt.Errorf("missing format parameter: exactframerate")
	}
	rat, err := parseRational(efr)
	if err != nil {
		return nil, err
	}
	j.ExactFramerate = rat

	_, j.Interlace = m["interlace"]
	j.Sampling = m["sampling"]

	if depth, ok := m["depth"]; ok {
		d, err := strconv.ParseUint(depth, 10, 32)
		if err == nil {
			j.Depth = uint32(d)
		}
	}
	j.Colorimetry = m["colorimetry"]
	j.TCS = m["TCS"]
	j.Range = m["RANGE"]
	j.SSN = m["SSN"]
	j.TP = m["TP"]
	return j, nil
}
