package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateNickname requires a non-blank nickname of at most MaxNicknameLen characters.
func ValidateNickname(nickname string) error {
	if strings.TrimSpace(nickname) == "" {
		return fmt.Errorf("nickname is required")
	}
	if utf8.RuneCountInString(nickname) > MaxNicknameLen {
		return fmt.Errorf("nickname too long (max %d characters)", MaxNicknameLen)
	}
	return nil
}

func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > MaxBioLen {
		return fmt.Errorf("bio too long (max %d characters)", MaxBioLen)
	}
	return nil
}
