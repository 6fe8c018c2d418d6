package posts

// Body is a decoded JSON request object.
type Body map[string]any

const (
	KeyID          = "_id"
	KeyName        = "name"
	KeyCategory    = "category"
	KeyImage0      = "image0"
	KeyImage1      = "image1"
	KeyDescription = "description"
)

var (
	createKeys = []string{KeyName, KeyCategory, KeyImage0, KeyImage1, KeyDescription}
	updateKeys = append([]string{KeyID}, createKeys...)

	createRequired = []string{KeyName, KeyImage0, KeyImage1, KeyDescription}
	updateRequired = append([]string{KeyID}, createRequired...)
)

type param struct {
	value    string
	isString bool
}

// Params holds extracted, sanitized request values.
type Params map[string]param

// Extract builds Params for keys from body. An absent key resolves to "", a
// string is filtered, and any other JSON value resolves to "" and fails
// IsString. The description is only read when name is present.
func Extract(body Body, keys ...string) Params {
	p := make(Params, len(keys))
	for _, key := range keys {
		if key == KeyDescription {
			if _, ok := body[KeyName]; !ok {
				p[key] = param{}
				continue
			}
		}
		if s, ok := body[key].(string); ok {
			p[key] = param{value: Filter(s), isString: true}
		} else {
			p[key] = param{}
		}
	}
	return p
}

// String returns the sanitized value of key, or "" when it was not a string.
func (p Params) String(key string) string {
	return p[key].value
}

// IsString reports whether key was present in the body as a string.
func (p Params) IsString(key string) bool {
	return p[key].isString
}

// Valid reports whether every required key was supplied as a string.
func (p Params) Valid(required ...string) bool {
	for _, key := range required {
		if !p.IsString(key) {
			return false
		}
	}
	return true
}

// Fields returns the persisted field set.
func (p Params) Fields() Fields {
	return Fields{
		Name:        p.String(KeyName),
		Category:    p.String(KeyCategory),
		Image0:      p.String(KeyImage0),
		Image1:      p.String(KeyImage1),
		Description: p.String(KeyDescription),
	}
}

// ExtractID reads _id directly from the body for deletes.
func ExtractID(body Body) (string, bool) {
	raw, ok := body[KeyID].(string)
	if !ok {
		return "", false
	}
	return Filter(raw), true
}
