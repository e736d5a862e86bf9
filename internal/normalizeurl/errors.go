package normalizeurl

import "errors"

var ErrUnresolvable = errors.New("href could not be resolved against base url")
var ErrEmptyNetloc = errors.New("url has no host")
var ErrUnsupportedScheme = errors.New("url scheme is not http or https")
