package config

import (
	"fmt"
	"reflect"
)

// MergeConfig 将 src 中的非零值深度覆盖到 dst 上并返回 dst
// - dst 与 src 都为 nil 时返回错误
// - 任一为 nil 时返回另一个
// 零值（false、0、""、空切片）不会覆盖 dst，需要显式关闭的开关应定义为指针
func MergeConfig[T any](dst, src *T) (*T, error) {
	if dst == nil && src == nil {
		return nil, fmt.Errorf("both dst and src cannot be nil")
	}
	if dst == nil {
		return src, nil
	}
	if src == nil {
		return dst, nil
	}

	if err := mergeValues(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem()); err != nil {
		return nil, err
	}
	return dst, nil
}

func mergeValues(dst, src reflect.Value) error {
	if !src.IsValid() || isZeroValue(src) {
		return nil
	}

	switch dst.Kind() {
	case reflect.Struct:
		if !hasExportedFields(dst.Type()) {
			dst.Set(src)
			return nil
		}
		return mergeStruct(dst, src)
	case reflect.Map:
		return mergeMap(dst, src)
	case reflect.Ptr:
		if src.Elem().Kind() != reflect.Struct {
			// 非 nil 的基本类型指针即使指向零值也覆盖
			dst.Set(src)
			return nil
		}
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return mergeValues(dst.Elem(), src.Elem())
	default:
		// 基本类型与切片整体覆盖
		if dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}

func mergeStruct(dst, src reflect.Value) error {
	srcType := src.Type()
	for i := 0; i < src.NumField(); i++ {
		field := srcType.Field(i)
		if !field.IsExported() {
			continue
		}

		dstField := dst.FieldByName(field.Name)
		if !dstField.IsValid() || !dstField.CanSet() {
			continue
		}
		if err := mergeValues(dstField, src.Field(i)); err != nil {
			return fmt.Errorf("failed to merge field %s: %w", field.Name, err)
		}
	}
	return nil
}

func mergeMap(dst, src reflect.Value) error {
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}

	iter := src.MapRange()
	for iter.Next() {
		key, srcValue := iter.Key(), iter.Value()

		existing := dst.MapIndex(key)
		if !existing.IsValid() {
			dst.SetMapIndex(key, srcValue)
			continue
		}

		merged := reflect.New(dst.Type().Elem()).Elem()
		merged.Set(existing)
		if err := mergeValues(merged, srcValue); err != nil {
			return err
		}
		dst.SetMapIndex(key, merged)
	}
	return nil
}

func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Func:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Struct:
		if !hasExportedFields(v.Type()) {
			return v.IsZero()
		}
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() && !isZeroValue(v.Field(i)) {
				return false
			}
		}
		return true
	default:
		return v.IsZero()
	}
}

// hasExportedFields 判断结构体是否有导出字段，time.Time 这类值类型按整体处理
func hasExportedFields(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}
