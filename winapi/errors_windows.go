package winapi

import "syscall"

const (
	ERROR_SUCCESS                 = syscall.Errno(0)
	ERROR_INSUFFICIENT_BUFFER     = syscall.Errno(122)
	ERROR_ALREADY_EXISTS          = syscall.Errno(183)
	ERROR_CANCELLED               = syscall.Errno(1223)
	ERROR_WMI_INSTANCE_NOT_FOUND  = syscall.Errno(4201)
	ERROR_CTX_CLOSE_PENDING       = syscall.Errno(7007)
	ERROR_NOT_FOUND               = syscall.Errno(1168)
	ERROR_EMPTY                   = syscall.Errno(4306)
	ERROR_RESOURCE_TYPE_NOT_FOUND = syscall.Errno(1813)
)
