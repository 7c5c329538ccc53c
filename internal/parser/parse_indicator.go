package parser

// ParseIndicatorAdd parses [id, renderer, onScreen, offScreen, arrow].
func (p *Parser) ParseIndicatorAdd(data []string) (IndicatorAdd, error) {
	var add IndicatorAdd

	data, err := p.prepare("indicator add", data, 5)
	if err != nil {
		return add, err
	}

	if add.ID, err = parseEntityID(data[0]); err != nil {
		return add, err
	}
	add.Renderer = data[1]
	if add.Caps, err = parseCaps(data[2], data[3], data[4]); err != nil {
		return add, err
	}

	return add, nil
}

// ParseIndicatorRemove parses [id] or [id, renderer].
func (p *Parser) ParseIndicatorRemove(data []string) (IndicatorRemove, error) {
	var remove IndicatorRemove

	data, err := p.prepare("indicator remove", data, 1)
	if err != nil {
		return remove, err
	}

	if remove.ID, err = parseEntityID(data[0]); err != nil {
		return remove, err
	}
	if len(data) > 1 {
		remove.Renderer = data[1]
	}

	return remove, nil
}

// ParseIndicatorVisible parses [id, visible].
func (p *Parser) ParseIndicatorVisible(data []string) (IndicatorVisible, error) {
	var vis IndicatorVisible

	data, err := p.prepare("indicator visible", data, 2)
	if err != nil {
		return vis, err
	}

	if vis.ID, err = parseEntityID(data[0]); err != nil {
		return vis, err
	}
	if vis.Visible, err = parseBool("visible", data[1]); err != nil {
		return vis, err
	}

	return vis, nil
}

// ParseIndicatorCaps parses [id, onScreen, offScreen, arrow].
func (p *Parser) ParseIndicatorCaps(data []string) (IndicatorCaps, error) {
	var caps IndicatorCaps

	data, err := p.prepare("indicator caps", data, 4)
	if err != nil {
		return caps, err
	}

	if caps.ID, err = parseEntityID(data[0]); err != nil {
		return caps, err
	}
	if caps.Caps, err = parseCaps(data[1], data[2], data[3]); err != nil {
		return caps, err
	}

	return caps, nil
}
