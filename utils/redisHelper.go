package utils

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/aivisionaries/hydropay_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* object cache */

// StoreRedis caches an instance under Type:$id, obj should be a pointer.
func StoreRedis[T any](obj any, id int) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.SetRedisObject(key, &obj, GetCacheLifespan())
}

// RetrieveRedis returns nil if the key does not exist.
func RetrieveRedis[T any](id int) (*T, error) {
	var result *T
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

func RemoveRedisItem[T any](id int) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.RemoveRedisKey(key)
}

/* OTP */

const otpMaxAttempts = 5

// OTP codes live five minutes unless OTP_MINUTE_LIFESPAN overrides it.
func GetOtpLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("OTP_MINUTE_LIFESPAN"))
	if err != nil {
		lifespan = 5
	}
	return time.Duration(lifespan) * time.Minute
}

func StoreOTP(email, code string) error {
	if err := config.RemoveRedisKey("OtpAttempts:" + email); err != nil {
		return err
	}
	return config.SetRedisValue("Otp:"+email, code, GetOtpLifespan())
}

// CheckOTP compares the submitted code against the stored one. The stored
// code is consumed on success and after too many wrong attempts, so a code
// can never be brute-forced or replayed.
func CheckOTP(ctx context.Context, email, code string) (bool, error) {
	stored, exists, err := config.GetRedisValue("Otp:" + email)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	attempts, err := config.GetRedisCounter(ctx, "OtpAttempts:"+email)
	if err != nil {
		return false, err
	}
	if attempts > otpMaxAttempts {
		_ = config.RemoveRedisKey("Otp:" + email)
		return false, nil
	}

	if stored != code {
		return false, nil
	}

	if err := config.RemoveRedisKey("Otp:" + email); err != nil {
		return false, err
	}
	_ = config.RemoveRedisKey("OtpAttempts:" + email)
	return true, nil
}
