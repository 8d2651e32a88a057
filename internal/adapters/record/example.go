package record

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lanefour/divetrace/internal/domain/model"
)

// tf.train.Example field numbers. The payload of every record is an
// Example message holding a feature map with two entries: "keypoints"
// (float list) and "label" (int64 list).
const (
	exampleFeaturesField = protowire.Number(1)

	featureMapField = protowire.Number(1)
	mapKeyField     = protowire.Number(1)
	mapValueField   = protowire.Number(2)

	floatListField = protowire.Number(2)
	int64ListField = protowire.Number(3)
	listValueField = protowire.Number(1)
)

const (
	keypointsKey = "keypoints"
	labelKey     = "label"
)

// marshalExample encodes a sample as a tf.train.Example message.
func marshalExample(s model.Sample) []byte {
	var packed []byte
	for _, v := range s.Features {
		packed = protowire.AppendFixed32(packed, math.Float32bits(v))
	}
	var floatList []byte
	floatList = protowire.AppendTag(floatList, listValueField, protowire.BytesType)
	floatList = protowire.AppendBytes(floatList, packed)

	var keypointsFeature []byte
	keypointsFeature = protowire.AppendTag(keypointsFeature, floatListField, protowire.BytesType)
	keypointsFeature = protowire.AppendBytes(keypointsFeature, floatList)

	var labelValues []byte
	labelValues = protowire.AppendVarint(labelValues, uint64(s.Label))
	var int64List []byte
	int64List = protowire.AppendTag(int64List, listValueField, protowire.BytesType)
	int64List = protowire.AppendBytes(int64List, labelValues)

	var labelFeature []byte
	labelFeature = protowire.AppendTag(labelFeature, int64ListField, protowire.BytesType)
	labelFeature = protowire.AppendBytes(labelFeature, int64List)

	features := appendMapEntry(nil, keypointsKey, keypointsFeature)
	features = appendMapEntry(features, labelKey, labelFeature)

	var example []byte
	example = protowire.AppendTag(example, exampleFeaturesField, protowire.BytesType)
	example = protowire.AppendBytes(example, features)
	return example
}

func appendMapEntry(b []byte, key string, feature []byte) []byte {
	var entry []byte
	entry = protowire.AppendTag(entry, mapKeyField, protowire.BytesType)
	entry = protowire.AppendString(entry, key)
	entry = protowire.AppendTag(entry, mapValueField, protowire.BytesType)
	entry = protowire.AppendBytes(entry, feature)

	b = protowire.AppendTag(b, featureMapField, protowire.BytesType)
	b = protowire.AppendBytes(b, entry)
	return b
}

// unmarshalExample decodes a tf.train.Example payload back into a sample.
// Unknown fields and foreign feature keys are skipped; a missing keypoints
// or label entry is an error.
func unmarshalExample(payload []byte) (model.Sample, error) {
	var sample model.Sample
	hasLabel := false

	for len(payload) > 0 {
		num, typ, n := protowire.ConsumeTag(payload)
		if n < 0 {
			return sample, wireError(n)
		}
		payload = payload[n:]

		if num == exampleFeaturesField && typ == protowire.BytesType {
			features, n := protowire.ConsumeBytes(payload)
			if n < 0 {
				return sample, wireError(n)
			}
			payload = payload[n:]
			if err := parseFeatureMap(features, &sample, &hasLabel); err != nil {
				return sample, err
			}
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, payload)
		if n < 0 {
			return sample, wireError(n)
		}
		payload = payload[n:]
	}

	if sample.Features == nil {
		return sample, fmt.Errorf("%w: missing %s feature", ErrCorrupt, keypointsKey)
	}
	if !hasLabel {
		return sample, fmt.Errorf("%w: missing %s feature", ErrCorrupt, labelKey)
	}
	return sample, nil
}

func parseFeatureMap(b []byte, sample *model.Sample, hasLabel *bool) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireError(n)
		}
		b = b[n:]

		if num != featureMapField || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireError(n)
			}
			b = b[n:]
			continue
		}

		entry, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return wireError(n)
		}
		b = b[n:]
		if err := parseMapEntry(entry, sample, hasLabel); err != nil {
			return err
		}
	}
	return nil
}

func parseMapEntry(entry []byte, sample *model.Sample, hasLabel *bool) error {
	var key string
	var feature []byte

	for len(entry) > 0 {
		num, typ, n := protowire.ConsumeTag(entry)
		if n < 0 {
			return wireError(n)
		}
		entry = entry[n:]

		switch {
		case num == mapKeyField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(entry)
			if n < 0 {
				return wireError(n)
			}
			key = string(v)
			entry = entry[n:]
		case num == mapValueField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(entry)
			if n < 0 {
				return wireError(n)
			}
			feature = v
			entry = entry[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, entry)
			if n < 0 {
				return wireError(n)
			}
			entry = entry[n:]
		}
	}

	switch key {
	case keypointsKey:
		values, err := parseFloatList(feature)
		if err != nil {
			return err
		}
		sample.Features = values
	case labelKey:
		label, err := parseInt64List(feature)
		if err != nil {
			return err
		}
		sample.Label = int(label)
		*hasLabel = true
	}
	return nil
}

// parseFloatList reads a Feature holding a FloatList, accepting both
// packed and unpacked value encodings.
func parseFloatList(feature []byte) ([]float32, error) {
	list, err := featureList(feature, floatListField)
	if err != nil {
		return nil, err
	}

	var values []float32
	for len(list) > 0 {
		num, typ, n := protowire.ConsumeTag(list)
		if n < 0 {
			return nil, wireError(n)
		}
		list = list[n:]

		switch {
		case num == listValueField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(list)
			if n < 0 {
				return nil, wireError(n)
			}
			list = list[n:]
			for len(packed) > 0 {
				bits, n := protowire.ConsumeFixed32(packed)
				if n < 0 {
					return nil, wireError(n)
				}
				packed = packed[n:]
				values = append(values, math.Float32frombits(bits))
			}
		case num == listValueField && typ == protowire.Fixed32Type:
			bits, n := protowire.ConsumeFixed32(list)
			if n < 0 {
				return nil, wireError(n)
			}
			list = list[n:]
			values = append(values, math.Float32frombits(bits))
		default:
			n = protowire.ConsumeFieldValue(num, typ, list)
			if n < 0 {
				return nil, wireError(n)
			}
			list = list[n:]
		}
	}
	if values == nil {
		values = []float32{}
	}
	return values, nil
}

func parseInt64List(feature []byte) (int64, error) {
	list, err := featureList(feature, int64ListField)
	if err != nil {
		return 0, err
	}

	for len(list) > 0 {
		num, typ, n := protowire.ConsumeTag(list)
		if n < 0 {
			return 0, wireError(n)
		}
		list = list[n:]

		switch {
		case num == listValueField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(list)
			if n < 0 {
				return 0, wireError(n)
			}
			if len(packed) == 0 {
				return 0, fmt.Errorf("%w: empty label list", ErrCorrupt)
			}
			v, vn := protowire.ConsumeVarint(packed)
			if vn < 0 {
				return 0, wireError(vn)
			}
			return int64(v), nil
		case num == listValueField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(list)
			if n < 0 {
				return 0, wireError(n)
			}
			return int64(v), nil
		default:
			n = protowire.ConsumeFieldValue(num, typ, list)
			if n < 0 {
				return 0, wireError(n)
			}
			list = list[n:]
		}
	}
	return 0, fmt.Errorf("%w: empty label list", ErrCorrupt)
}

// featureList unwraps the oneof field of a Feature message, requiring the
// given list kind.
func featureList(feature []byte, want protowire.Number) ([]byte, error) {
	for len(feature) > 0 {
		num, typ, n := protowire.ConsumeTag(feature)
		if n < 0 {
			return nil, wireError(n)
		}
		feature = feature[n:]

		if num == want && typ == protowire.BytesType {
			list, n := protowire.ConsumeBytes(feature)
			if n < 0 {
				return nil, wireError(n)
			}
			return list, nil
		}

		n = protowire.ConsumeFieldValue(num, typ, feature)
		if n < 0 {
			return nil, wireError(n)
		}
		feature = feature[n:]
	}
	return nil, fmt.Errorf("%w: feature holds the wrong list kind", ErrCorrupt)
}

func wireError(n int) error {
	return fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
}
