package parser

import "math"

// ParseCameraSet parses ["x,y,z" position, "x,y,z" forward].
func (p *Parser) ParseCameraSet(data []string) (CameraSet, error) {
	var cam CameraSet

	data, err := p.prepare("camera set", data, 2)
	if err != nil {
		return cam, err
	}

	if cam.Position, err = parsePosition("camera position", data[0]); err != nil {
		return cam, err
	}
	if cam.Forward, err = parsePosition("camera forward", data[1]); err != nil {
		return cam, err
	}

	return cam, nil
}

// ParseRendererHidden parses [name, hidden].
func (p *Parser) ParseRendererHidden(data []string) (RendererHidden, error) {
	var rh RendererHidden

	data, err := p.prepare("renderer hidden", data, 2)
	if err != nil {
		return rh, err
	}

	rh.Name = data[0]
	if rh.Hidden, err = parseBool("hidden", data[1]); err != nil {
		return rh, err
	}

	return rh, nil
}

// ParseRendererSort parses [name, enabled, interval].
func (p *Parser) ParseRendererSort(data []string) (RendererSort, error) {
	var rs RendererSort

	data, err := p.prepare("renderer sort", data, 3)
	if err != nil {
		return rs, err
	}

	rs.Name = data[0]
	if rs.Enabled, err = parseBool("enabled", data[1]); err != nil {
		return rs, err
	}
	interval, err := wholeNumber("sort interval", data[2], math.MinInt32, math.MaxInt32)
	if err != nil {
		return rs, err
	}
	rs.Interval = int(interval)

	return rs, nil
}

// ParseRendererFade parses [name, near, far].
func (p *Parser) ParseRendererFade(data []string) (RendererFade, error) {
	var rf RendererFade

	data, err := p.prepare("renderer fade", data, 3)
	if err != nil {
		return rf, err
	}

	rf.Name = data[0]
	if rf.Near, err = parseFloat("fade near", data[1]); err != nil {
		return rf, err
	}
	if rf.Far, err = parseFloat("fade far", data[2]); err != nil {
		return rf, err
	}

	return rf, nil
}

// ParseRendererMargins parses [name, margin, arrowMargin].
func (p *Parser) ParseRendererMargins(data []string) (RendererMargins, error) {
	var rm RendererMargins

	data, err := p.prepare("renderer margins", data, 3)
	if err != nil {
		return rm, err
	}

	rm.Name = data[0]
	if rm.Margin, err = parseFloat("margin", data[1]); err != nil {
		return rm, err
	}
	if rm.ArrowMargin, err = parseFloat("arrow margin", data[2]); err != nil {
		return rm, err
	}

	return rm, nil
}
