package service

import "errors"

var ErrApprovalNotFound = errors.New("approval not found or expired")
