package sqldriver

func (d *Driver) Rebind(query string) string { return d.rebind(query) }
