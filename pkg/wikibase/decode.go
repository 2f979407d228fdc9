package wikibase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wdgraph/wdgraph/pkg/entity"
)

var (
	// ErrMalformedResponse is returned when a response body is not a JSON object.
	ErrMalformedResponse = errors.New("malformed wbgetentities response")
)

// APIError is an error reported in the body of a response.
type APIError struct {
	Code string
	Info string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wikibase api error %q: %s", e.Code, e.Info)
}

// Retryable reports whether the request may succeed when repeated later.
func (e *APIError) Retryable() bool {
	switch e.Code {
	case "maxlag", "ratelimited", "readonly":
		return true
	default:
		return false
	}
}

// DecodeEntities decodes a wbgetentities response body. Entities flagged as
// missing or invalid are left out of the result. A body that carries an API
// error yields an *APIError.
func DecodeEntities(body []byte) (map[entity.ID]*entity.Payload, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return nil, ErrMalformedResponse
	}

	if apiErr := res.Get("error"); apiErr.Exists() {
		return nil, &APIError{
			Code: apiErr.Get("code").String(),
			Info: apiErr.Get("info").String(),
		}
	}

	out := make(map[entity.ID]*entity.Payload)
	res.Get("entities").ForEach(func(key, value gjson.Result) bool {
		if value.Get("missing").Exists() || value.Get("invalid").Exists() {
			return true
		}
		raw := value.Get("id").String()
		if raw == "" {
			raw = key.String()
		}
		id, err := entity.Canonicalize(raw, entity.NoType)
		if err != nil {
			return true
		}
		out[id] = decodePayload(id, value)
		return true
	})

	return out, nil
}

func decodePayload(id entity.ID, value gjson.Result) *entity.Payload {
	p := &entity.Payload{
		ID:        id,
		Title:     value.Get("title").String(),
		Type:      value.Get("type").String(),
		Namespace: int(value.Get("ns").Int()),
		DataType:  value.Get("datatype").String(),
	}

	// Older dumps omit the namespace for properties.
	if !value.Get("ns").Exists() && p.Type == "property" {
		p.Namespace = entity.NamespaceProperty
	}

	p.Labels = decodeLangValues(value.Get("labels"))
	p.Descriptions = decodeLangValues(value.Get("descriptions"))

	if aliases := value.Get("aliases"); aliases.IsObject() {
		p.Aliases = make(map[string][]entity.LangValue)
		aliases.ForEach(func(lang, list gjson.Result) bool {
			for _, v := range list.Array() {
				p.Aliases[lang.String()] = append(p.Aliases[lang.String()], entity.LangValue{
					Language: v.Get("language").String(),
					Value:    v.Get("value").String(),
				})
			}
			return true
		})
	}

	if sitelinks := value.Get("sitelinks"); sitelinks.IsObject() {
		p.Sitelinks = make(map[string]entity.Sitelink)
		sitelinks.ForEach(func(site, v gjson.Result) bool {
			p.Sitelinks[site.String()] = entity.Sitelink{
				Site:  v.Get("site").String(),
				Title: v.Get("title").String(),
			}
			return true
		})
	}

	if claims := value.Get("claims"); claims.IsObject() {
		p.Claims = make(map[entity.ID][]entity.Claim)
		claims.ForEach(func(prop, list gjson.Result) bool {
			pid, err := entity.Canonicalize(prop.String(), entity.TypeProperty)
			if err != nil {
				return true
			}
			for _, c := range list.Array() {
				p.Claims[pid] = append(p.Claims[pid], decodeClaim(c))
			}
			return true
		})
	}

	return p
}

func decodeLangValues(res gjson.Result) map[string]entity.LangValue {
	if !res.IsObject() {
		return nil
	}
	out := make(map[string]entity.LangValue)
	res.ForEach(func(lang, v gjson.Result) bool {
		out[lang.String()] = entity.LangValue{
			Language: v.Get("language").String(),
			Value:    v.Get("value").String(),
		}
		return true
	})
	return out
}

func decodeClaim(c gjson.Result) entity.Claim {
	claim := entity.Claim{
		ID:       c.Get("id").String(),
		Rank:     entity.Rank(c.Get("rank").String()),
		MainSnak: DecodeSnak(c.Get("mainsnak")),
	}

	if qualifiers := c.Get("qualifiers"); qualifiers.IsObject() {
		claim.Qualifiers = make(map[entity.ID][]entity.Snak)
		qualifiers.ForEach(func(prop, list gjson.Result) bool {
			pid, err := entity.Canonicalize(prop.String(), entity.TypeProperty)
			if err != nil {
				return true
			}
			for _, s := range list.Array() {
				claim.Qualifiers[pid] = append(claim.Qualifiers[pid], DecodeSnak(s))
			}
			return true
		})

		for _, p := range c.Get("qualifiers-order").Array() {
			pid, err := entity.Canonicalize(p.String(), entity.TypeProperty)
			if err != nil {
				continue
			}
			if _, ok := claim.Qualifiers[pid]; ok {
				claim.QualifierOrder = append(claim.QualifierOrder, pid)
			}
		}
	}

	return claim
}

// DecodeSnak decodes a snak. It never fails: snaks without a value and value
// types other than item references, strings, times and quantities decode as
// entity.KindUndecodable with the raw datavalue kept.
func DecodeSnak(s gjson.Result) entity.Snak {
	snak := entity.Snak{
		SnakType: s.Get("snaktype").String(),
		DataType: s.Get("datatype").String(),
	}
	if pid, err := entity.Canonicalize(s.Get("property").String(), entity.TypeProperty); err == nil {
		snak.Property = pid
	}

	datavalue := s.Get("datavalue")
	snak.Value = entity.Value{Kind: entity.KindUndecodable, Raw: datavalue.Raw}
	if snak.SnakType != "" && snak.SnakType != "value" {
		return snak
	}

	v := datavalue.Get("value")
	switch datavalue.Get("type").String() {
	case "wikibase-entityid":
		if id, ok := itemReference(v); ok {
			snak.Value = entity.Value{Kind: entity.KindItem, Item: id}
		}
	case "string":
		snak.Value = entity.Value{Kind: entity.KindString, String: v.String()}
	case "time":
		snak.Value = entity.Value{Kind: entity.KindTime, Time: &entity.TimeValue{
			Time:          v.Get("time").String(),
			Timezone:      int(v.Get("timezone").Int()),
			Before:        int(v.Get("before").Int()),
			After:         int(v.Get("after").Int()),
			Precision:     int(v.Get("precision").Int()),
			CalendarModel: v.Get("calendarmodel").String(),
		}}
	case "quantity":
		snak.Value = entity.Value{Kind: entity.KindQuantity, Quantity: &entity.QuantityValue{
			Amount:     v.Get("amount").String(),
			Unit:       v.Get("unit").String(),
			UpperBound: v.Get("upperBound").String(),
			LowerBound: v.Get("lowerBound").String(),
		}}
	}

	return snak
}

// itemReference returns the item an entity-id value points to.
func itemReference(v gjson.Result) (entity.ID, bool) {
	entityType := v.Get("entity-type").String()
	if entityType != "" && entityType != "item" {
		return "", false
	}
	if id := v.Get("id").String(); id != "" {
		if !strings.HasPrefix(strings.ToUpper(id), "Q") {
			return "", false
		}
		canonical, err := entity.Canonicalize(id, entity.TypeItem)
		return canonical, err == nil
	}
	if n := v.Get("numeric-id"); n.Exists() {
		canonical, err := entity.Canonicalize(n.String(), entity.TypeItem)
		return canonical, err == nil
	}
	return "", false
}
