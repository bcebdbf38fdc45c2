package mdk

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const urnPrefix = "urn:li:"

// Entity types the processing stages know about.
const (
	ContainerEntityType    = "container"
	DatasetEntityType      = "dataset"
	TagEntityType          = "tag"
	DataPlatformEntityType = "dataPlatform"
)

// URN is a parsed entity identifier of the form urn:li:<type>:<id> where id is
// either a plain string or a parenthesized, comma separated tuple.
type URN struct {
	EntityType string
	EntityIDs  []string
}

var (
	urnUnescaper = strings.NewReplacer("%28", "(", "%29", ")", "%2C", ",", "%25", "%")
	urnEscaper   = strings.NewReplacer("%", "%25", "(", "%28", ")", "%29", ",", "%2C")
)

// ParseURN parses s, percent-decoding each tuple component.
func ParseURN(s string) (*URN, error) {
	if !strings.HasPrefix(s, urnPrefix) {
		return nil, errors.Wrapf(ErrInvalidURN, "'%s' does not start with %s", s, urnPrefix)
	}
	rest := s[len(urnPrefix):]
	i := strings.IndexByte(rest, ':')
	if i <= 0 {
		return nil, errors.Wrapf(ErrInvalidURN, "'%s' has no entity type", s)
	}
	typ, id := rest[:i], rest[i+1:]
	if id == "" {
		return nil, errors.Wrapf(ErrInvalidURN, "'%s' has an empty id", s)
	}
	var parts []string
	if strings.HasPrefix(id, "(") {
		if !strings.HasSuffix(id, ")") {
			return nil, errors.Wrapf(ErrInvalidURN, "'%s' has an unterminated tuple", s)
		}
		var err error
		parts, err = splitTuple(id[1 : len(id)-1])
		if err != nil {
			return nil, errors.Wrapf(err, "parsing '%s'", s)
		}
	} else {
		parts = []string{id}
	}
	for i, p := range parts {
		parts[i] = urnUnescaper.Replace(p)
	}
	return &URN{EntityType: typ, EntityIDs: parts}, nil
}

// splitTuple splits on the commas which are not nested inside parentheses.
func splitTuple(s string) ([]string, error) {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, errors.Wrap(ErrInvalidURN, "unbalanced parentheses")
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errors.Wrap(ErrInvalidURN, "unbalanced parentheses")
	}
	return append(parts, s[start:]), nil
}

// String renders the urn, escaping tuple components.
func (u *URN) String() string {
	if len(u.EntityIDs) == 1 {
		return urnPrefix + u.EntityType + ":" + u.EntityIDs[0]
	}
	parts := make([]string, len(u.EntityIDs))
	for i, p := range u.EntityIDs {
		if strings.HasPrefix(p, urnPrefix) {
			parts[i] = p
		} else {
			parts[i] = urnEscaper.Replace(p)
		}
	}
	return fmt.Sprintf("%s%s:(%s)", urnPrefix, u.EntityType, strings.Join(parts, ","))
}

// EntityType returns the entity type segment of urn, or the empty string if
// urn is not shaped like an entity urn.
func EntityType(urn string) string {
	if !strings.HasPrefix(urn, urnPrefix) {
		return ""
	}
	rest := urn[len(urnPrefix):]
	i := strings.IndexByte(rest, ':')
	if i <= 0 {
		return ""
	}
	return rest[:i]
}

// TagName returns the name component of a tag urn.
func TagName(urn string) (string, error) {
	u, err := ParseURN(urn)
	if err != nil {
		return "", err
	}
	if u.EntityType != TagEntityType {
		return "", errors.Wrapf(ErrInvalidURN, "'%s' is not a tag urn", urn)
	}
	return u.EntityIDs[0], nil
}

// MakeContainerURN returns the urn of the container with the given guid.
func MakeContainerURN(guid string) string {
	return urnPrefix + ContainerEntityType + ":" + guid
}

// MakeTagURN returns the urn of the tag with the given name.
func MakeTagURN(name string) string {
	return urnPrefix + TagEntityType + ":" + name
}

// MakeDataPlatformURN returns the urn of a data platform such as "bigquery".
func MakeDataPlatformURN(platform string) string {
	if strings.HasPrefix(platform, urnPrefix) {
		return platform
	}
	return urnPrefix + DataPlatformEntityType + ":" + platform
}

// MakeDatasetURN returns the urn of a dataset on platform in the env fabric.
func MakeDatasetURN(platform, name, env string) string {
	return fmt.Sprintf("%s%s:(%s,%s,%s)", urnPrefix, DatasetEntityType, MakeDataPlatformURN(platform), name, env)
}
